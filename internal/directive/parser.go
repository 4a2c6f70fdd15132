package directive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/model"
)

// ProfileStore is the slice of the profile cache the parser needs.
type ProfileStore interface {
	Get(ctx context.Context, id int64) (*model.UserProfile, error)
	SaveOrUpdate(ctx context.Context, p *model.UserProfile) error
}

// Mutation describes the outcome of a config mutation directive.
type Mutation struct {
	Name    string
	Config  *model.LangConfig // nil for deletion
	Applied bool              // false when refused or not applicable in this mode
	Message string            // user-facing outcome
}

// Result is either a translation request or a mutation outcome.
type Result struct {
	Request  *model.TranslationRequest
	Mutation *Mutation
	Profile  *model.UserProfile // caller's profile after the directive was applied
}

// Parser resolves directives against the caller's profile.
type Parser struct {
	profiles ProfileStore
	log      *zap.Logger
}

// NewParser constructs a Parser.
func NewParser(profiles ProfileStore, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{profiles: profiles, log: log}
}

// Parse interprets input for userID. Profile errors from the store are returned unchanged
// (*errs.ProfileNotExistsError, *errs.ProfileNotEnabledError); a reference to an unknown config
// yields *errs.LangConfigNotExistsError.
func (p *Parser) Parse(ctx context.Context, userID int64, input string, mode Mode) (*Result, error) {
	d := Parse(input, mode)

	profile, err := p.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if d.Kind == KindMutation {
		m, updated, err := p.mutate(ctx, profile, d, mode)
		if err != nil {
			return nil, err
		}
		return &Result{Mutation: m, Profile: updated}, nil
	}

	cfg, err := resolve(profile, d)
	if err != nil {
		return nil, err
	}
	return &Result{
		Request: &model.TranslationRequest{
			UserID:     userID,
			Text:       d.Text,
			LangConfig: cfg,
			Credential: profile.Credential,
		},
		Profile: profile,
	}, nil
}

func resolve(profile *model.UserProfile, d Directive) (model.LangConfig, error) {
	if d.Config != nil {
		return d.Config.Clone(), nil
	}
	c, ok := profile.Configs[d.Name]
	if !ok {
		return model.LangConfig{}, &errs.LangConfigNotExistsError{Name: d.Name}
	}
	return c.Clone(), nil
}

func (p *Parser) mutate(ctx context.Context, profile *model.UserProfile, d Directive, mode Mode) (*Mutation, *model.UserProfile, error) {
	m := &Mutation{Name: d.Name, Config: d.Config}

	if mode == ModeInline {
		m.Message = "Config changes are only accepted in the chat with the bot"
		return m, profile, nil
	}

	if d.Config == nil {
		if model.IsReservedConfig(d.Name) {
			m.Message = fmt.Sprintf("Config %s is always present and can't be deleted, redefine it instead", d.Name)
			return m, profile, nil
		}
		if _, ok := profile.Configs[d.Name]; !ok {
			m.Message = fmt.Sprintf("Config %s doesn't exist", d.Name)
			return m, profile, nil
		}
	} else if err := d.Config.Validate(); err != nil {
		m.Message = fmt.Sprintf("Config %s not saved: %v", d.Name, err)
		return m, profile, nil
	}

	updated := profile.Clone()
	if d.Config == nil {
		delete(updated.Configs, d.Name)
		m.Message = fmt.Sprintf("Config %s deleted", d.Name)
	} else {
		updated.Configs[d.Name] = d.Config.Clone()
		m.Message = fmt.Sprintf("Config %s set to %s", d.Name, d.Config.ShortDescription())
	}

	if err := p.profiles.SaveOrUpdate(ctx, updated); err != nil {
		return nil, nil, fmt.Errorf("save config %s: %w", d.Name, err)
	}
	m.Applied = true
	p.log.Info("config mutated",
		zap.Int64("user", profile.ID),
		zap.String("config", d.Name),
		zap.Bool("deleted", d.Config == nil),
	)
	return m, updated, nil
}

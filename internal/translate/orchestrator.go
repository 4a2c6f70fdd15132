package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/model"
)

// SearchAppender receives one entry per completed translation.
type SearchAppender interface {
	Append(ctx context.Context, e model.SearchEntry) error
}

const appendTimeout = 5 * time.Second

// Orchestrator resolves the translation direction, calls the provider and logs the search.
type Orchestrator struct {
	provider          Provider
	searches          SearchAppender
	defaultCredential string
	log               *zap.Logger

	pending sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator. searches may be nil.
// defaultCredential is used for requests that carry none (operator-enabled profiles).
func NewOrchestrator(p Provider, searches SearchAppender, defaultCredential string, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{provider: p, searches: searches, defaultCredential: defaultCredential, log: log}
}

// Translate translates req.Text. Detect-mode configs are resolved to an explicit direction first;
// the result always carries that explicit direction. With withReverse the translation is also
// translated back, without detecting again.
//
// Provider failures are returned as *errs.TranslationError.
func (o *Orchestrator) Translate(ctx context.Context, req model.TranslationRequest, withReverse bool) (*model.TranslationResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, &errs.TranslationError{Msg: "nothing to translate"}
	}
	credential := req.Credential
	if credential == "" {
		credential = o.defaultCredential
	}

	mode := "explicit"
	if req.LangConfig.IsDetect() {
		mode = "detect"
	}

	effective, err := o.direction(ctx, credential, req)
	if err != nil {
		translationsTotal.WithLabelValues(mode, "error").Inc()
		return nil, err
	}

	translated, err := o.provider.Translate(ctx, credential, req.Text, effective.From, effective.To)
	if err != nil {
		translationsTotal.WithLabelValues(mode, "error").Inc()
		return nil, &errs.TranslationError{
			Msg: fmt.Sprintf("translation %s -> %s failed", effective.From, effective.To),
			Err: err,
		}
	}
	if translated == "" {
		translationsTotal.WithLabelValues(mode, "error").Inc()
		return nil, &errs.TranslationError{Msg: "provider returned an empty translation"}
	}

	res := &model.TranslationResult{
		Text:       req.Text,
		Translated: translated,
		LangConfig: effective,
	}

	if withReverse {
		back := effective.Reverse()
		reversed, err := o.provider.Translate(ctx, credential, translated, back.From, back.To)
		if err == nil && reversed == "" {
			err = errors.New("empty reverse translation")
		}
		if err != nil {
			o.log.Warn("reverse translation failed",
				zap.Int64("user", req.UserID),
				zap.String("direction", back.ShortDescription()),
				zap.Error(err),
			)
		} else {
			res.Reversed, res.HasReverse = reversed, true
		}
	}

	translationsTotal.WithLabelValues(mode, "ok").Inc()
	o.record(ctx, req.UserID, res)
	return res, nil
}

// direction returns the explicit config to translate with.
func (o *Orchestrator) direction(ctx context.Context, credential string, req model.TranslationRequest) (model.LangConfig, error) {
	c := req.LangConfig
	if !c.IsDetect() {
		return model.Explicit(c.From, c.To), nil
	}

	candidates, err := o.provider.Detect(ctx, credential, req.Text, c.Hints)
	if err != nil {
		return model.LangConfig{}, &errs.TranslationError{Msg: "language detection failed", Err: err}
	}
	if len(candidates) == 0 || candidates[0] == "" {
		return model.LangConfig{}, &errs.TranslationError{Msg: "language detection returned no candidates"}
	}
	source := candidates[0]
	if source != c.To {
		return model.Explicit(source, c.To), nil
	}

	// text is already in the target language: flip to the first other hint
	for _, h := range c.Hints {
		if h != source {
			return model.Explicit(source, h), nil
		}
	}
	return model.LangConfig{}, &errs.TranslationError{
		Msg: fmt.Sprintf("detected %s, which is the target language, and no other hint to translate to", source),
		Err: errs.ErrAmbiguousDirection,
	}
}

// record appends the search entry in the background. Failures are only logged.
func (o *Orchestrator) record(ctx context.Context, userID int64, res *model.TranslationResult) {
	if o.searches == nil {
		return
	}
	entry := model.SearchEntry{
		UserID:       userID,
		Timestamp:    time.Now().UTC(),
		SourceText:   res.Text,
		TargetText:   res.Translated,
		ResolvedFrom: res.LangConfig.From,
		ResolvedTo:   res.LangConfig.To,
	}
	bg := context.WithoutCancel(ctx)
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		actx, cancel := context.WithTimeout(bg, appendTimeout)
		defer cancel()
		if err := o.searches.Append(actx, entry); err != nil {
			o.log.Warn("search log append failed", zap.Int64("user", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until background search log writes finish.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// IsAmbiguous reports whether err is a detection that could not pick a target language.
func IsAmbiguous(err error) bool {
	return errors.Is(err, errs.ErrAmbiguousDirection)
}

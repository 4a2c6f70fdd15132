// Package service handles inbound chat updates: directives, translations, commands and replies.
package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/directive"
	"github.com/and161185/lanxat/internal/limiter"
	"github.com/and161185/lanxat/internal/model"
)

// User identifies the sender of an update.
type User struct {
	ID       int64
	UserName string
}

// InlineQuery is text typed after the bot mention in any chat.
type InlineQuery struct {
	ID    string
	From  User
	Query string
}

// Message is a direct message to the bot.
type Message struct {
	ChatID int64
	From   User
	Text   string
}

// Update carries exactly one of InlineQuery or Message.
type Update struct {
	InlineQuery *InlineQuery
	Message     *Message
}

// InlineResult is one selectable answer to an inline query.
type InlineResult struct {
	ID          string
	Title       string
	Description string
	Text        string // message sent when the result is chosen
}

// InlineAnswer answers one inline query.
type InlineAnswer struct {
	QueryID   string
	Results   []InlineResult
	CacheTime int    // seconds the transport may cache the answer
	HelpText  string // when set, a button leading to the bot chat
}

// Sender delivers replies to the chat platform.
type Sender interface {
	AnswerInlineQuery(ctx context.Context, a InlineAnswer) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Profiles is the profile cache.
type Profiles interface {
	directive.ProfileStore
}

// Translator runs one translation.
type Translator interface {
	Translate(ctx context.Context, req model.TranslationRequest, withReverse bool) (*model.TranslationResult, error)
}

// InviteVerifier checks an operator invite for a user.
type InviteVerifier interface {
	Verify(token string, userID int64) error
}

// Config tunes replies.
type Config struct {
	InlineCacheTime int              // seconds
	Defaults        model.LangConfig // reserved configs of new profiles
	Debounce        []limiter.Option // inline query sampling
	Attempts        limiter.Attempts // invite lockout; nil disables it
}

// pendingQuery is an inline query waiting for its debounce window.
type pendingQuery struct {
	ctx context.Context
	q   InlineQuery
}

// Service is the single entry point for chat updates.
type Service struct {
	parser     *directive.Parser
	profiles   Profiles
	translator Translator
	sender     Sender
	invites    InviteVerifier
	cfg        Config
	log        *zap.Logger

	inline *limiter.Debouncer[pendingQuery]
}

// New constructs a Service. invites may be nil, then /start ignores tokens.
func New(profiles Profiles, translator Translator, sender Sender, invites InviteVerifier, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Defaults.To == "" {
		cfg.Defaults = model.Explicit("en", "ru")
	}
	s := &Service{
		parser:     directive.NewParser(profiles, log.Named("directive")),
		profiles:   profiles,
		translator: translator,
		sender:     sender,
		invites:    invites,
		cfg:        cfg,
		log:        log,
	}
	opts := append([]limiter.Option{limiter.WithLogger(log.Named("debounce"))}, cfg.Debounce...)
	s.inline = limiter.NewDebouncer[pendingQuery](s.flushInline, opts...)
	return s
}

// OnUpdate handles one update. Inline queries are sampled per user before translation.
// Panics are recovered and logged; the update is dropped.
func (s *Service) OnUpdate(ctx context.Context, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic handling update",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	switch {
	case upd.InlineQuery != nil:
		q := *upd.InlineQuery
		s.log.Debug("inline query", zap.Int64("user", q.From.ID), zap.Int("len", len(q.Query)))
		s.inline.Push(q.From.ID, pendingQuery{ctx: ctx, q: q})
	case upd.Message != nil:
		s.HandleMessage(ctx, *upd.Message)
	default:
		s.log.Debug("update without inline query or message")
	}
}

func (s *Service) flushInline(_ int64, p pendingQuery) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic handling inline query", zap.String("query", p.q.ID), zap.Any("panic", r))
		}
	}()
	s.HandleInlineQuery(p.ctx, p.q)
}

// Close stops inline sampling.
func (s *Service) Close() {
	s.inline.Close()
}

func userInfo(u User) string {
	if u.UserName == "" {
		return fmt.Sprintf("(%d)", u.ID)
	}
	return fmt.Sprintf("%s (%d)", u.UserName, u.ID)
}

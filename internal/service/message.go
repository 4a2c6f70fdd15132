package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/directive"
	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/limiter"
	"github.com/and161185/lanxat/internal/model"
)

// HandleMessage handles one direct message: a command, a config mutation or a translation.
func (s *Service) HandleMessage(ctx context.Context, m Message) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		s.log.Debug("message without text", zap.String("user", userInfo(m.From)))
		return
	}
	if strings.HasPrefix(text, "/") {
		s.command(ctx, m, text)
		return
	}

	res, err := s.parser.Parse(ctx, m.From.ID, text, directive.ModeBot)
	if err != nil {
		s.replyError(ctx, m, err)
		return
	}
	if res.Mutation != nil {
		s.reply(ctx, m.ChatID, res.Mutation.Message)
		return
	}

	tr, err := s.translator.Translate(ctx, *res.Request, false)
	if err != nil {
		s.replyError(ctx, m, err)
		return
	}
	s.log.Info("message translation",
		zap.String("user", userInfo(m.From)),
		zap.String("direction", direction(tr.LangConfig)),
	)
	s.reply(ctx, m.ChatID, messageReply(tr))
}

func (s *Service) command(ctx context.Context, m Message, text string) {
	name, arg, _ := strings.Cut(text, " ")
	// "/cmd@botname" addresses the command explicitly
	name, _, _ = strings.Cut(name, "@")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/start":
		if arg == "" || arg == SetupPayload {
			s.reply(ctx, m.ChatID, helpText)
			return
		}
		s.enable(ctx, m, arg)
	case "/help":
		s.reply(ctx, m.ChatID, helpText)
	case "/key":
		if arg == "" {
			s.reply(ctx, m.ChatID, "Usage: /key <your api key>")
			return
		}
		s.setKey(ctx, m, arg)
	case "/configs":
		p, err := s.profiles.Get(ctx, m.From.ID)
		if err != nil {
			s.replyError(ctx, m, err)
			return
		}
		s.reply(ctx, m.ChatID, configsList(p))
	default:
		s.reply(ctx, m.ChatID, "Sorry, the command `"+text+"` is not implemented yet")
	}
}

// loadOrCreate returns the stored profile, usable or not, or a fresh one with default configs.
func (s *Service) loadOrCreate(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	var (
		notExists  *errs.ProfileNotExistsError
		notEnabled *errs.ProfileNotEnabledError
	)
	switch {
	case errors.As(err, &notExists):
		return model.NewUserProfile(userID, s.cfg.Defaults), nil
	case errors.As(err, &notEnabled):
		p = notEnabled.Profile.Clone()
		for _, name := range []string{model.ConfigInline, model.ConfigBot} {
			if _, ok := p.Configs[name]; !ok {
				p.Configs[name] = s.cfg.Defaults.Clone()
			}
		}
		return p, nil
	default:
		return nil, err
	}
}

func (s *Service) setKey(ctx context.Context, m Message, key string) {
	p, err := s.loadOrCreate(ctx, m.From.ID)
	if err != nil {
		s.replyError(ctx, m, err)
		return
	}
	p.Credential = key
	if err := s.profiles.SaveOrUpdate(ctx, p); err != nil {
		s.replyError(ctx, m, err)
		return
	}
	s.log.Info("credential set", zap.String("user", userInfo(m.From)))
	s.reply(ctx, m.ChatID, "Your key was saved. Type a message to translate it, or /help.")
}

func (s *Service) enable(ctx context.Context, m Message, token string) {
	if s.invites == nil {
		s.reply(ctx, m.ChatID, helpText)
		return
	}
	if ok, retry := s.allowInvite(ctx, m.From.ID); !ok {
		s.reply(ctx, m.ChatID, fmt.Sprintf("Too many invalid invites, try again in %s.", retry.Round(time.Minute)))
		return
	}
	if err := s.invites.Verify(token, m.From.ID); err != nil {
		s.log.Info("invite rejected", zap.String("user", userInfo(m.From)), zap.Error(err))
		s.inviteFailed(ctx, m.From.ID)
		s.reply(ctx, m.ChatID, "This invite is not valid for you.")
		return
	}
	s.inviteSucceeded(ctx, m.From.ID)
	p, err := s.loadOrCreate(ctx, m.From.ID)
	if err != nil {
		s.replyError(ctx, m, err)
		return
	}
	p.Enabled = true
	if err := s.profiles.SaveOrUpdate(ctx, p); err != nil {
		s.replyError(ctx, m, err)
		return
	}
	s.log.Info("profile enabled", zap.String("user", userInfo(m.From)))
	s.reply(ctx, m.ChatID, "Your profile is enabled. Type a message to translate it, or /help.")
}

// allowInvite fails open on limiter errors.
func (s *Service) allowInvite(ctx context.Context, userID int64) (bool, time.Duration) {
	if s.cfg.Attempts == nil {
		return true, 0
	}
	ok, retry, err := s.cfg.Attempts.Allow(ctx, userID, limiter.ActionInvite)
	if err != nil {
		s.log.Warn("invite limiter", zap.Int64("user", userID), zap.Error(err))
		return true, 0
	}
	return ok, retry
}

func (s *Service) inviteFailed(ctx context.Context, userID int64) {
	if s.cfg.Attempts == nil {
		return
	}
	blocked, d, err := s.cfg.Attempts.Failure(ctx, userID, limiter.ActionInvite)
	switch {
	case err != nil:
		s.log.Warn("invite limiter", zap.Int64("user", userID), zap.Error(err))
	case blocked:
		s.log.Info("invites blocked", zap.Int64("user", userID), zap.Duration("for", d))
	}
}

func (s *Service) inviteSucceeded(ctx context.Context, userID int64) {
	if s.cfg.Attempts == nil {
		return
	}
	if err := s.cfg.Attempts.Success(ctx, userID, limiter.ActionInvite); err != nil {
		s.log.Warn("invite limiter", zap.Int64("user", userID), zap.Error(err))
	}
}

func (s *Service) replyError(ctx context.Context, m Message, err error) {
	msg, _, known := userMessage(err)
	if !known {
		s.log.Error("message dropped", zap.String("user", userInfo(m.From)), zap.Error(err))
		return
	}
	s.log.Info("message failed", zap.String("user", userInfo(m.From)), zap.Error(err))
	s.reply(ctx, m.ChatID, msg)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
		s.log.Warn("send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/directive"
	"github.com/and161185/lanxat/internal/errs"
)

// HandleInlineQuery answers one inline query immediately, without sampling.
func (s *Service) HandleInlineQuery(ctx context.Context, q InlineQuery) {
	if strings.TrimSpace(q.Query) == "" {
		s.answer(ctx, InlineAnswer{QueryID: q.ID, Results: singleResult(titleInfo, helpText), CacheTime: s.cfg.InlineCacheTime})
		return
	}

	res, err := s.parser.Parse(ctx, q.From.ID, q.Query, directive.ModeInline)
	if err != nil {
		s.inlineError(ctx, q, err)
		return
	}
	if res.Mutation != nil {
		s.answer(ctx, InlineAnswer{QueryID: q.ID, Results: singleResult(titleInfo, res.Mutation.Message)})
		return
	}

	tr, err := s.translator.Translate(ctx, *res.Request, true)
	if err != nil {
		s.inlineError(ctx, q, err)
		return
	}
	s.log.Info("inline translation",
		zap.String("user", userInfo(q.From)),
		zap.String("direction", direction(tr.LangConfig)),
	)
	s.answer(ctx, InlineAnswer{QueryID: q.ID, Results: inlineResults(tr), CacheTime: s.cfg.InlineCacheTime})
}

func (s *Service) inlineError(ctx context.Context, q InlineQuery, err error) {
	err = &errs.InlineQueryError{QueryID: q.ID, Err: err}
	msg, needsSetup, known := userMessage(err)
	if !known {
		s.log.Error("inline query dropped", zap.String("user", userInfo(q.From)), zap.Error(err))
		return
	}
	s.log.Info("inline query failed", zap.String("user", userInfo(q.From)), zap.Error(err))

	a := InlineAnswer{QueryID: q.ID, Results: singleResult(titleError, msg)}
	if needsSetup {
		a.HelpText = setupButton
	}
	s.answer(ctx, a)
}

func (s *Service) answer(ctx context.Context, a InlineAnswer) {
	if err := s.sender.AnswerInlineQuery(ctx, a); err != nil {
		s.log.Warn("answer inline query", zap.String("query", a.QueryID), zap.Error(err))
	}
}

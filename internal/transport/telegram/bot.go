// Package telegram connects the service to the Telegram Bot API with long polling.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/service"
)

const pollTimeout = 60 // seconds

// Bot implements service.Sender and feeds updates to a handler.
type Bot struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

var _ service.Sender = (*Bot)(nil)

// New connects with token. endpoint overrides the API URL format (tgbotapi.APIEndpoint when empty).
func New(token, endpoint string, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info("telegram authorized", zap.String("bot", api.Self.UserName))
	return &Bot{api: api, log: log}, nil
}

// UserName is the bot's own user name.
func (b *Bot) UserName() string { return b.api.Self.UserName }

// Run polls updates until ctx is done, handling each one in its own goroutine.
func (b *Bot) Run(ctx context.Context, handle func(context.Context, service.Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			su, ok := Convert(upd)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(ctx, su)
			}()
		}
	}
}

// AnswerInlineQuery sends inline results.
func (b *Bot) AnswerInlineQuery(_ context.Context, a service.InlineAnswer) error {
	_, err := b.api.Request(inlineConfig(a))
	return err
}

// SendMessage sends plain text to a chat.
func (b *Bot) SendMessage(_ context.Context, chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Convert maps a Telegram update to a service update. Updates without a text message or
// inline query are skipped.
func Convert(u tgbotapi.Update) (service.Update, bool) {
	switch {
	case u.InlineQuery != nil:
		q := u.InlineQuery
		return service.Update{InlineQuery: &service.InlineQuery{
			ID:    q.ID,
			From:  user(q.From),
			Query: q.Query,
		}}, true
	case u.Message != nil && u.Message.Text != "":
		m := u.Message
		return service.Update{Message: &service.Message{
			ChatID: m.Chat.ID,
			From:   user(m.From),
			Text:   m.Text,
		}}, true
	default:
		return service.Update{}, false
	}
}

func user(u *tgbotapi.User) service.User {
	if u == nil {
		return service.User{}
	}
	return service.User{ID: u.ID, UserName: u.UserName}
}

func inlineConfig(a service.InlineAnswer) tgbotapi.InlineConfig {
	results := make([]interface{}, 0, len(a.Results))
	for _, r := range a.Results {
		art := tgbotapi.NewInlineQueryResultArticle(r.ID, r.Title, r.Text)
		art.Description = r.Description
		results = append(results, art)
	}
	cfg := tgbotapi.InlineConfig{
		InlineQueryID: a.QueryID,
		Results:       results,
		CacheTime:     a.CacheTime,
		IsPersonal:    true,
	}
	if a.HelpText != "" {
		cfg.SwitchPMText = a.HelpText
		cfg.SwitchPMParameter = service.SetupPayload
	}
	return cfg
}

package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/model"
)

const (
	titleInfo     = "Information"
	titleError    = "Error"
	titleReversed = "reversed"

	setupButton = "Set up LanXat"
)

// SetupPayload is the /start argument sent by the inline setup button.
const SetupPayload = "setup"

const helpText = `LanXat translates what you type.

In any chat: type the bot name and your message, the result appears as you type.
Here: just send the message.

Directives:
  .en.ru text          translate en -> ru
  (en,ru) .ru.ru text  detect among en,ru; translate to ru, or to en if the text is already ru
  .name text           use your saved config "name"
  .name = .en.de       save config "name" (send it here)
  .name =              delete config "name"

Commands:
  /key <api key>       use your own provider key
  /configs             list your configs
  /start <invite>      enable your profile with an operator invite
  /help                this text`

func direction(c model.LangConfig) string {
	return c.From + " -> " + c.To
}

// messageReply is the direct message reply for a finished translation.
func messageReply(r *model.TranslationResult) string {
	return "Translated " + direction(r.LangConfig) + "\n" + r.Translated
}

// inlineResults lists the candidates in fixed order: translation, original, reversed (if any), both.
func inlineResults(r *model.TranslationResult) []InlineResult {
	out := []InlineResult{
		{ID: "1", Title: r.LangConfig.To, Description: r.Translated, Text: r.Translated},
		{ID: "2", Title: r.LangConfig.From, Description: r.Text, Text: r.Text},
	}
	if r.HasReverse {
		out = append(out, InlineResult{ID: "3", Title: titleReversed, Description: r.Reversed, Text: r.Reversed})
	}
	both := "- " + r.Text + "\n- " + r.Translated
	out = append(out, InlineResult{ID: "4", Title: direction(r.LangConfig), Description: both, Text: both})
	return out
}

func singleResult(title, text string) []InlineResult {
	return []InlineResult{{ID: "1", Title: title, Description: text, Text: text}}
}

// userMessage renders err for the user. needsSetup reports whether the user has to talk to the bot first;
// known is false for unclassified errors, which get no reply.
func userMessage(err error) (msg string, needsSetup, known bool) {
	var (
		notExists  *errs.ProfileNotExistsError
		notEnabled *errs.ProfileNotEnabledError
		noConfig   *errs.LangConfigNotExistsError
		translErr  *errs.TranslationError
	)
	switch {
	case errors.As(err, &notExists):
		return fmt.Sprintf("You don't have a profile yet (your user id is %d). "+
			"Send /key <your api key> to the bot, or ask the operator for an invite.", notExists.UserID), true, true
	case errors.As(err, &notEnabled):
		return "Your profile is not set up yet. Send /key <your api key> to the bot.", true, true
	case errors.As(err, &noConfig):
		return fmt.Sprintf("Config %s doesn't exist. Send /configs to the bot to list yours.", noConfig.Name), false, true
	case errors.As(err, &translErr):
		return "There was an error with the translation provider: " + translErr.Error(), false, true
	default:
		return "", false, false
	}
}

// configsList renders the user's configs sorted by name.
func configsList(p *model.UserProfile) string {
	names := make([]string, 0, len(p.Configs))
	for name := range p.Configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Your configs:")
	for _, name := range names {
		c := p.Configs[name]
		fmt.Fprintf(&b, "\n.%s = %s   (%s)", name, c.QueryPattern(), c.ShortDescription())
	}
	return b.String()
}

package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/and161185/lanxat/internal/model"
)

// OpenAI uses chat completions for translation and detection. The credential is the API key.
type OpenAI struct {
	baseURL string
	model   string
}

// NewOpenAI constructs an OpenAI provider. Empty model means gpt-4o-mini.
func NewOpenAI(baseURL, mdl string) *OpenAI {
	if mdl == "" {
		mdl = openai.GPT4oMini
	}
	return &OpenAI{baseURL: baseURL, model: mdl}
}

func (o *OpenAI) client(credential string) *openai.Client {
	cfg := openai.DefaultConfig(credential)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (o *OpenAI) complete(ctx context.Context, credential, system, user string, maxTokens int) (string, error) {
	resp, err := o.client(credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Translate asks the model for a bare translation.
func (o *OpenAI) Translate(ctx context.Context, credential, text, from, to string) (string, error) {
	system := fmt.Sprintf("Translate the user's message from language %q to language %q (ISO 639-1). "+
		"Respond with only the translation, nothing else.", from, to)
	out, err := o.complete(ctx, credential, system, text, 1024)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("openai: empty translation")
	}
	return out, nil
}

// Detect asks the model for the ISO 639-1 code of the message.
func (o *OpenAI) Detect(ctx context.Context, credential, text string, hints []string) ([]string, error) {
	system := "Identify the language of the user's message. Respond with only its two-letter ISO 639-1 code."
	if len(hints) > 0 {
		system += " It is most likely one of: " + strings.Join(hints, ", ") + "."
	}
	out, err := o.complete(ctx, credential, system, text, 5)
	if err != nil {
		return nil, err
	}
	code := strings.ToLower(strings.Trim(out, " .\"'\n"))
	if len(code) > 2 {
		code = code[:2]
	}
	if !model.IsLangCode(code) {
		return nil, fmt.Errorf("openai: unexpected detection %q", out)
	}
	return []string{code}, nil
}

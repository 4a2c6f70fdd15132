package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultYandexURL is the Yandex Translate v1.5 API root.
const DefaultYandexURL = "https://translate.yandex.net/api/v1.5"

// Yandex talks to the Yandex Translate JSON API. The credential is the API key.
type Yandex struct {
	http *resty.Client
}

// NewYandex constructs a Yandex client.
func NewYandex(baseURL string, timeout time.Duration) *Yandex {
	if baseURL == "" {
		baseURL = DefaultYandexURL
	}
	return &Yandex{http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

type yandexTranslateResponse struct {
	Code int      `json:"code"`
	Lang string   `json:"lang"`
	Text []string `json:"text"`
}

type yandexDetectResponse struct {
	Code int    `json:"code"`
	Lang string `json:"lang"`
}

// Translate calls tr.json/translate with lang "from-to".
func (y *Yandex) Translate(ctx context.Context, credential, text, from, to string) (string, error) {
	var out yandexTranslateResponse
	r, err := y.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":  credential,
			"text": text,
			"lang": from + "-" + to,
		}).
		SetResult(&out).
		Get("/tr.json/translate")
	if err != nil {
		return "", err
	}
	if r.IsError() {
		return "", &StatusError{Code: r.StatusCode(), Body: r.String()}
	}
	if len(out.Text) == 0 {
		return "", errors.New("yandex: empty translation")
	}
	return strings.Join(out.Text, "\n"), nil
}

// Detect calls tr.json/detect; Yandex returns a single language.
func (y *Yandex) Detect(ctx context.Context, credential, text string, hints []string) ([]string, error) {
	q := map[string]string{"key": credential, "text": text}
	if len(hints) > 0 {
		q["hint"] = strings.Join(hints, ",")
	}
	var out yandexDetectResponse
	r, err := y.http.R().SetContext(ctx).SetQueryParams(q).SetResult(&out).Get("/tr.json/detect")
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, &StatusError{Code: r.StatusCode(), Body: r.String()}
	}
	if out.Lang == "" {
		return nil, nil
	}
	return []string{out.Lang}, nil
}

package translate

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultLibreTranslateURL is a local LibreTranslate instance.
const DefaultLibreTranslateURL = "http://localhost:5000"

// LibreTranslate talks to a LibreTranslate server. The credential, if any, is sent as api_key.
type LibreTranslate struct {
	http *resty.Client
}

// NewLibreTranslate constructs a LibreTranslate client.
func NewLibreTranslate(baseURL string, timeout time.Duration) *LibreTranslate {
	if baseURL == "" {
		baseURL = DefaultLibreTranslateURL
	}
	return &LibreTranslate{http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type libreDetectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type libreDetection struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// Translate posts to /translate.
func (l *LibreTranslate) Translate(ctx context.Context, credential, text, from, to string) (string, error) {
	var out libreTranslateResponse
	r, err := l.http.R().SetContext(ctx).
		SetBody(libreTranslateRequest{Q: text, Source: from, Target: to, Format: "text", APIKey: credential}).
		SetResult(&out).
		Post("/translate")
	if err != nil {
		return "", err
	}
	if r.IsError() {
		return "", &StatusError{Code: r.StatusCode(), Body: r.String()}
	}
	if out.TranslatedText == "" {
		return "", errors.New("libretranslate: empty translation")
	}
	return out.TranslatedText, nil
}

// Detect posts to /detect. Candidates listed in hints are moved to the front, keeping confidence order.
func (l *LibreTranslate) Detect(ctx context.Context, credential, text string, hints []string) ([]string, error) {
	var out []libreDetection
	r, err := l.http.R().SetContext(ctx).
		SetBody(libreDetectRequest{Q: text, APIKey: credential}).
		SetResult(&out).
		Post("/detect")
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, &StatusError{Code: r.StatusCode(), Body: r.String()}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	hinted := make(map[string]bool, len(hints))
	for _, h := range hints {
		hinted[h] = true
	}
	langs := make([]string, 0, len(out))
	for _, d := range out {
		if hinted[d.Language] {
			langs = append(langs, d.Language)
		}
	}
	for _, d := range out {
		if !hinted[d.Language] {
			langs = append(langs, d.Language)
		}
	}
	return langs, nil
}

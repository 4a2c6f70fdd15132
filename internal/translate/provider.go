// Package translate orchestrates detection and translation against a pluggable provider.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Provider is a machine translation backend. credential is the caller's secret for the vendor.
type Provider interface {
	// Translate returns text translated from one language to another.
	Translate(ctx context.Context, credential, text, from, to string) (string, error)
	// Detect returns candidate source languages, most likely first. hints may be empty.
	Detect(ctx context.Context, credential, text string, hints []string) ([]string, error)
}

const maxErrorBody = 200 // bytes of vendor body kept in errors

// StatusError is a non-2xx vendor response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// Engine names a provider implementation.
type Engine string

const (
	EngineYandex         Engine = "yandex"
	EngineLibreTranslate Engine = "libretranslate"
	EngineOpenAI         Engine = "openai"
)

// ParseEngine parses an engine name, case-insensitively.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(s))); e {
	case EngineYandex, EngineLibreTranslate, EngineOpenAI:
		return e, nil
	default:
		return "", fmt.Errorf("unknown translation engine: %s (supported: yandex, libretranslate, openai)", s)
	}
}

// Config selects and tunes the provider.
type Config struct {
	Engine  Engine
	BaseURL string // vendor endpoint; engine default when empty
	Model   string // openai only
	Timeout time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerTimeout. Zero disables it.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Logger *zap.Logger
}

const defaultTimeout = 20 * time.Second

// NewProvider builds the configured engine, wrapped with the breaker and metrics.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	var p Provider
	switch cfg.Engine {
	case EngineYandex:
		p = NewYandex(cfg.BaseURL, cfg.Timeout)
	case EngineLibreTranslate:
		p = NewLibreTranslate(cfg.BaseURL, cfg.Timeout)
	case EngineOpenAI:
		p = NewOpenAI(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown translation engine: %q", cfg.Engine)
	}

	cfg.Logger.Info("translation provider ready",
		zap.String("engine", string(cfg.Engine)),
		zap.String("base_url", cfg.BaseURL),
		zap.Uint32("breaker_failures", cfg.BreakerFailures),
	)

	if cfg.BreakerFailures > 0 {
		p = WithBreaker(p, string(cfg.Engine), cfg.BreakerFailures, cfg.BreakerTimeout, cfg.Logger)
	}
	return Instrument(p, string(cfg.Engine)), nil
}

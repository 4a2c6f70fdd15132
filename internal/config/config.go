// Package config loads runtime settings from flags, environment (LANXAT_*) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/and161185/lanxat/internal/model"
	"github.com/and161185/lanxat/internal/translate"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "LANXAT"

// Keys; flags use the same names.
const (
	KeyTelegramToken   = "telegram-token"
	KeyDSN             = "dsn"
	KeyEngine          = "engine"
	KeyEngineURL       = "engine-url"
	KeyEngineKey       = "engine-key"
	KeyOpenAIModel     = "openai-model"
	KeyEngineTimeout   = "engine-timeout"
	KeyBreakerFailures = "breaker-failures"
	KeyBreakerTimeout  = "breaker-timeout"
	KeySecret          = "secret"
	KeySecretSalt      = "secret-salt"
	KeyInviteKey       = "invite-key"
	KeyDebounceWindow  = "debounce-window"
	KeyDebounceIdle    = "debounce-idle"
	KeyCacheTTL        = "cache-ttl"
	KeyInlineCacheTime = "inline-cache-time"
	KeyDefaultFrom     = "default-from"
	KeyDefaultTo       = "default-to"
	KeyGRPCAddr        = "grpc-addr"
	KeyMetricsAddr     = "metrics-addr"
	KeyLogLevel        = "log-level"
	KeyDev             = "dev"
)

// Config is the validated runtime configuration.
type Config struct {
	TelegramToken string
	DSN           string

	Engine          translate.Engine
	EngineURL       string
	EngineKey       string // server credential for enabled profiles
	OpenAIModel     string
	EngineTimeout   time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Secret     string // passphrase sealing stored credentials
	SecretSalt string
	InviteKey  string

	DebounceWindow  time.Duration
	DebounceIdle    time.Duration
	CacheTTL        time.Duration
	InlineCacheTime int
	Defaults        model.LangConfig

	GRPCAddr    string
	MetricsAddr string
	LogLevel    string
	Dev         bool
}

// New returns a viper instance reading LANXAT_* variables, with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyEngine, string(translate.EngineYandex))
	v.SetDefault(KeyEngineTimeout, 20*time.Second)
	v.SetDefault(KeyBreakerFailures, 5)
	v.SetDefault(KeyBreakerTimeout, 30*time.Second)
	v.SetDefault(KeySecretSalt, "lanxat")
	v.SetDefault(KeyDebounceWindow, 2*time.Second)
	v.SetDefault(KeyDebounceIdle, 10*time.Minute)
	v.SetDefault(KeyCacheTTL, 5*time.Minute)
	v.SetDefault(KeyInlineCacheTime, 0)
	v.SetDefault(KeyDefaultFrom, "en")
	v.SetDefault(KeyDefaultTo, "ru")
	v.SetDefault(KeyGRPCAddr, ":9090")
	v.SetDefault(KeyMetricsAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	return v
}

// BindFlags registers the persistent flags of cmd and binds them into v.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	fs := cmd.PersistentFlags()
	fs.String(KeyTelegramToken, "", "Telegram bot token")
	fs.String(KeyDSN, "", "PostgreSQL DSN")
	fs.String(KeyEngine, v.GetString(KeyEngine), "translation engine: yandex, libretranslate, openai")
	fs.String(KeyEngineURL, "", "translation engine base URL (engine default when empty)")
	fs.String(KeyEngineKey, "", "server credential used by enabled profiles")
	fs.String(KeyOpenAIModel, "", "OpenAI model for the openai engine")
	fs.Duration(KeyEngineTimeout, v.GetDuration(KeyEngineTimeout), "translation request timeout")
	fs.Uint32(KeyBreakerFailures, v.GetUint32(KeyBreakerFailures), "consecutive provider failures opening the breaker (0 disables)")
	fs.Duration(KeyBreakerTimeout, v.GetDuration(KeyBreakerTimeout), "how long the breaker stays open")
	fs.String(KeySecret, "", "passphrase sealing stored credentials")
	fs.String(KeySecretSalt, v.GetString(KeySecretSalt), "salt for the credential passphrase")
	fs.String(KeyInviteKey, "", "HS256 key signing operator invites")
	fs.Duration(KeyDebounceWindow, v.GetDuration(KeyDebounceWindow), "inline query sampling window")
	fs.Duration(KeyDebounceIdle, v.GetDuration(KeyDebounceIdle), "idle time before a user's inline stream is dropped")
	fs.Duration(KeyCacheTTL, v.GetDuration(KeyCacheTTL), "profile cache TTL")
	fs.Int(KeyInlineCacheTime, v.GetInt(KeyInlineCacheTime), "seconds Telegram may cache inline answers")
	fs.String(KeyDefaultFrom, v.GetString(KeyDefaultFrom), "source language of new profiles")
	fs.String(KeyDefaultTo, v.GetString(KeyDefaultTo), "target language of new profiles")
	fs.String(KeyGRPCAddr, v.GetString(KeyGRPCAddr), "ops gRPC listen address (health)")
	fs.String(KeyMetricsAddr, v.GetString(KeyMetricsAddr), "HTTP listen address for /metrics and /status")
	fs.String(KeyLogLevel, v.GetString(KeyLogLevel), "log level: debug, info, warn, error")
	fs.Bool(KeyDev, false, "development mode (gRPC reflection, console logs)")
	return v.BindPFlags(fs)
}

// ReadFile merges a YAML config file into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load builds and validates a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	engine, err := translate.ParseEngine(v.GetString(KeyEngine))
	if err != nil {
		return nil, err
	}
	c := &Config{
		TelegramToken:   v.GetString(KeyTelegramToken),
		DSN:             v.GetString(KeyDSN),
		Engine:          engine,
		EngineURL:       v.GetString(KeyEngineURL),
		EngineKey:       v.GetString(KeyEngineKey),
		OpenAIModel:     v.GetString(KeyOpenAIModel),
		EngineTimeout:   v.GetDuration(KeyEngineTimeout),
		BreakerFailures: v.GetUint32(KeyBreakerFailures),
		BreakerTimeout:  v.GetDuration(KeyBreakerTimeout),
		Secret:          v.GetString(KeySecret),
		SecretSalt:      v.GetString(KeySecretSalt),
		InviteKey:       v.GetString(KeyInviteKey),
		DebounceWindow:  v.GetDuration(KeyDebounceWindow),
		DebounceIdle:    v.GetDuration(KeyDebounceIdle),
		CacheTTL:        v.GetDuration(KeyCacheTTL),
		InlineCacheTime: v.GetInt(KeyInlineCacheTime),
		Defaults:        model.Explicit(v.GetString(KeyDefaultFrom), v.GetString(KeyDefaultTo)),
		GRPCAddr:        v.GetString(KeyGRPCAddr),
		MetricsAddr:     v.GetString(KeyMetricsAddr),
		LogLevel:        v.GetString(KeyLogLevel),
		Dev:             v.GetBool(KeyDev),
	}

	var problems []error
	if err := c.Defaults.Validate(); err != nil {
		problems = append(problems, fmt.Errorf("default languages: %w", err))
	}
	for key, d := range map[string]time.Duration{
		KeyEngineTimeout:  c.EngineTimeout,
		KeyDebounceWindow: c.DebounceWindow,
		KeyDebounceIdle:   c.DebounceIdle,
		KeyCacheTTL:       c.CacheTTL,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.InlineCacheTime < 0 {
		problems = append(problems, fmt.Errorf("%s must not be negative", KeyInlineCacheTime))
	}
	if err := errors.Join(problems...); err != nil {
		return nil, err
	}
	return c, nil
}

// RequireBot checks the settings the bot cannot start without.
func (c *Config) RequireBot() error {
	var problems []error
	if c.TelegramToken == "" {
		problems = append(problems, errors.New("missing telegram token (--telegram-token or LANXAT_TELEGRAM_TOKEN)"))
	}
	if c.DSN == "" {
		problems = append(problems, errors.New("missing database DSN (--dsn or LANXAT_DSN)"))
	}
	if c.Secret == "" {
		problems = append(problems, errors.New("missing credential passphrase (--secret or LANXAT_SECRET)"))
	}
	return errors.Join(problems...)
}

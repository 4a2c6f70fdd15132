// Command lanxat-bot runs the LanXat Telegram translation bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/lanxat/internal/config"
	"github.com/and161185/lanxat/internal/crypto"
	"github.com/and161185/lanxat/internal/invite"
	"github.com/and161185/lanxat/internal/limiter"
	"github.com/and161185/lanxat/internal/migrate"
	"github.com/and161185/lanxat/internal/profile"
	"github.com/and161185/lanxat/internal/repository/postgres"
	grpcserver "github.com/and161185/lanxat/internal/server/grpc"
	httpserver "github.com/and161185/lanxat/internal/server/http"
	"github.com/and161185/lanxat/internal/service"
	"github.com/and161185/lanxat/internal/transport/telegram"
	"github.com/and161185/lanxat/internal/translate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	shutdownTimeout = 5 * time.Second
	healthInterval  = 15 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "lanxat-bot",
		Short:        "LanXat Telegram translation bot",
		Version:      version + " (" + buildDate + ")",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			log, err := config.NewLogger(cfg.LogLevel, cfg.Dev)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "YAML config file")
	if err := config.BindFlags(cmd, v); err != nil {
		panic(err)
	}
	return cmd
}

func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	if err := config.ReadFile(v, path); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireBot(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run wires the bot and blocks until ctx is done or a server fails.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("engine", string(cfg.Engine)),
	)

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	sealer, err := crypto.NewSealer([]byte(cfg.Secret), []byte(cfg.SecretSalt))
	if err != nil {
		return fmt.Errorf("sealer: %w", err)
	}
	profiles := profile.New(postgres.NewProfileRepo(db, sealer), cfg.CacheTTL, log.Named("profile"))

	provider, err := translate.NewProvider(translate.Config{
		Engine:          cfg.Engine,
		BaseURL:         cfg.EngineURL,
		Model:           cfg.OpenAIModel,
		Timeout:         cfg.EngineTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
		Logger:          log.Named("provider"),
	})
	if err != nil {
		return err
	}
	orch := translate.NewOrchestrator(provider, postgres.NewSearchRepo(db), cfg.EngineKey, log.Named("translate"))

	var invites service.InviteVerifier
	if cfg.InviteKey != "" {
		iss, err := invite.New([]byte(cfg.InviteKey))
		if err != nil {
			return fmt.Errorf("invites: %w", err)
		}
		invites = iss
	} else {
		log.Warn("no invite key, /start tokens are ignored")
	}

	bot, err := telegram.New(cfg.TelegramToken, "", log.Named("telegram"))
	if err != nil {
		return err
	}
	svc := service.New(profiles, orch, bot, invites, service.Config{
		InlineCacheTime: cfg.InlineCacheTime,
		Defaults:        cfg.Defaults,
		Debounce: []limiter.Option{
			limiter.WithWindow(cfg.DebounceWindow),
			limiter.WithIdleAfter(cfg.DebounceIdle),
		},
		Attempts: limiter.NewPG(db.Pool, limiter.DefaultAttemptWindow, limiter.DefaultMaxFails, limiter.DefaultBlockFor),
	}, log.Named("service"))

	// Ops endpoints
	ops := grpcserver.New(log.Named("grpc"), cfg.Dev, map[string]grpcserver.Check{"postgres": db.Ping})
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	metrics := httpserver.New(cfg.MetricsAddr, fmt.Sprintf("lanxat %s (%s) @%s", version, buildDate, bot.UserName()), log.Named("http"))
	httpLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	errCh := make(chan error, 3)
	go func() { errCh <- ops.Serve(grpcLis) }()
	go func() { errCh <- metrics.Serve(httpLis) }()
	go ops.Watch(ctx, healthInterval)
	go func() { errCh <- bot.Run(ctx, svc.OnUpdate) }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			log.Error("server error", zap.Error(runErr))
		}
	}

	// graceful shutdown
	svc.Close()
	ops.Stop(shutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metrics.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("http shutdown", zap.Error(err))
	}
	orch.Wait()

	log.Info("shutdown complete")
	return runErr
}

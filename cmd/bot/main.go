// Command bot runs the key-intake service: the Telegram transport, the
// read-only HTTP API, and the notification relay, all backed by one SQLite
// store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/leadvane/adkey-backend/internal/config"
	httpapi "github.com/leadvane/adkey-backend/internal/http"
	"github.com/leadvane/adkey-backend/internal/observability"
	"github.com/leadvane/adkey-backend/internal/repo"
	"github.com/leadvane/adkey-backend/internal/services"
	"github.com/leadvane/adkey-backend/internal/sysutil"
	"github.com/leadvane/adkey-backend/internal/telegram"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().Str("version", ver).Str("db", cfg.DBPath).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	// The bot is both a transport and the Notifier used by the services, so
	// services start with a no-op notifier and get rebound once the bot is up.
	accessSvc := services.NewAccessService(db, cfg.IsAdmin, services.NopNotifier{})
	accessSvc.DefaultDays = cfg.GrantDays
	funnelSvc := services.NewFunnelService(db, services.NopNotifier{})
	funnelSvc.MinKeyRunes = cfg.MinKeyRunes
	funnelSvc.Reserved = telegram.IsReservedLabel
	adminSvc := services.NewAdminService(db, accessSvc)

	bot, err := telegram.New(cfg.BotToken, accessSvc, funnelSvc, adminSvc)
	if err != nil {
		return err
	}
	var notifier services.Notifier = services.NopNotifier{}
	if bot != nil {
		notifier = bot
		accessSvc.Notify = bot
		funnelSvc.Notify = bot
		go bot.Run(ctx)
	} else {
		log.Warn().Msg("BOT_TOKEN empty, running API-only")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, notifier, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}

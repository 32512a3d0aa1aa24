package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luckygrid/platform/internal/app"
	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/live"
	"github.com/luckygrid/platform/internal/notify"
	"github.com/luckygrid/platform/internal/provider"
	"github.com/luckygrid/platform/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.AllowInsecureDefaults {
		logger.Warn("running with insecure defaults, do not use in production")
	}

	if cfg.AutoMigrate {
		if err := infra.RunMigrations(cfg.DSN(), "", logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	prizes, err := infra.LoadPrizeConfig(cfg.PrizeConfigPath)
	if err != nil {
		return fmt.Errorf("load prize config: %w", err)
	}

	admins := auth.NewEmailAllowlist(cfg.AdminEmails)
	logger.Info("admin allowlist loaded", "admins", admins.Len())

	// Email
	var sender notify.Sender
	if addr := cfg.SMTPAddr(); addr != "" {
		smtpSender, err := provider.NewSMTPSender(addr, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		if err != nil {
			return fmt.Errorf("smtp sender: %w", err)
		}
		sender = smtpSender
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		sender = provider.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, guard.NewCircuitBreaker(5, time.Minute), cfg.NotifyQueueSize, 4, logger.With("component", "notify"))
	mailer := notify.NewMailer(dispatcher, cfg.AdminNotifyEmails, logger)

	hub := infra.NewWSHub(cfg.CORSOrigins, logger.With("component", "ws"))
	limiter := guard.NewRateLimiter(cfg.PickRatePerSecond, cfg.PickRateBurst)

	r, err := app.NewRouter(app.RouterDeps{
		Store:       store.NewPostgres(pool),
		Verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience),
		Admins:      admins,
		RNG:         provider.NewRandomOrgClient(cfg.RandomOrgAPIKey, logger),
		Prizes:      prizes,
		Paystack:    provider.NewPaystackProvider(cfg.PaystackSecretKey),
		Feed:        live.NewFeed(hub),
		Mailer:      mailer,
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
		Retry:       cfg.RetryPolicy(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx, time.Minute) })
	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

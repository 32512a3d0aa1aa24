package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/notify"
	"github.com/luckygrid/platform/internal/provider"
	"github.com/luckygrid/platform/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("digest worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.DigestTimezone)
	if err != nil {
		return fmt.Errorf("load DIGEST_TIMEZONE: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	var sender notify.Sender = provider.NewLogSender(logger)
	if addr := cfg.SMTPAddr(); addr != "" {
		smtpSender, err := provider.NewSMTPSender(addr, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		if err != nil {
			return fmt.Errorf("smtp sender: %w", err)
		}
		sender = smtpSender
	}
	dispatcher := notify.NewDispatcher(sender, guard.NewCircuitBreaker(5, time.Minute), cfg.NotifyQueueSize, 2, logger)
	digest := notify.NewDigest(store.NewPostgres(pool), dispatcher, logger)

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.CronJob(cfg.DigestCron, false),
		gocron.NewTask(func() {
			if _, err := digest.Run(ctx); err != nil {
				logger.Error("digest run failed", "error", err)
			}
		}),
		gocron.WithName("daily-digest"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		scheduler.Start()
		logger.Info("digest worker started", "cron", cfg.DigestCron, "timezone", loc.String())
		<-gctx.Done()
		return scheduler.Shutdown()
	})
	return g.Wait()
}

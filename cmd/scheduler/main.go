package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/segyhp/lending-ledger/internal/cache"
	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/repository"
	"github.com/segyhp/lending-ledger/internal/service"
	"github.com/segyhp/lending-ledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, log); err != nil {
		log.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("Starting lending scheduler...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	opts := []service.Option{service.WithLogger(log)}
	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		defer client.Close()
		opts = append(opts, service.WithReportCache(cache.NewReportCache(client, cfg.GetCacheTTL())))
	}

	library := service.NewLibrary(repository.NewSQLStores(db), service.PolicyFromConfig(cfg), opts...)
	j := &jobs{library: library, log: log, window: cfg.GetReminderWindow()}

	cronLog := cronLogger{log: log.With("component", "cron")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if err := j.schedule(ctx, c, cfg.Scheduler.SweepSpec, cfg.Scheduler.ReminderSpec); err != nil {
		return err
	}

	c.Start()
	log.Info("Scheduler started successfully",
		"sweep_spec", cfg.Scheduler.SweepSpec, "reminder_spec", cfg.Scheduler.ReminderSpec)

	<-ctx.Done()

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
	return nil
}

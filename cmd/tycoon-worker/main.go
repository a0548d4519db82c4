package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habittycoon/internal/config"
	"habittycoon/internal/db"
	"habittycoon/internal/events"
	"habittycoon/internal/game"
	"habittycoon/internal/lock"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type jobs struct {
	svc   *game.Service
	log   *slog.Logger
	batch int
}

func (j jobs) resetDailyHabits(ctx context.Context) error {
	reset, err := j.svc.ResetOutdatedDailyHabits(ctx, "")
	if err != nil {
		return err
	}
	if len(reset) > 0 {
		j.log.Info("reset outdated daily habits", "count", len(reset))
	}
	return nil
}

func (j jobs) settleDividends(ctx context.Context) error {
	settled, err := j.svc.SettlePendingDividends(ctx, j.batch)
	if err != nil {
		return err
	}
	if settled > 0 {
		j.log.Info("settled pending dividends", "count", settled)
	}
	return nil
}

func (j jobs) run(ctx context.Context, name string, fn func(context.Context) error) func() {
	return func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := fn(runCtx); err != nil {
			j.log.Error("job failed", "job", name, "err", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel(cfg.LogLevel)}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 5})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	defaultLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("default timezone invalid, using UTC", "tz", cfg.DefaultTimezone, "err", err)
		defaultLoc = time.UTC
	}
	opts := []game.Option{game.WithDefaultLocation(defaultLoc)}
	if rdb := db.ConnectRedis(ctx, cfg.RedisURL, logger); rdb != nil {
		defer rdb.Close()
		opts = append(opts, game.WithLocker(lock.NewRedis(rdb, logger)))
	}
	publisher := events.Connect(cfg.AMQPURL, logger)
	defer publisher.Close()
	opts = append(opts, game.WithPublisher(publisher))

	j := jobs{svc: game.NewService(pool, logger, opts...), log: logger, batch: cfg.DividendBatch}

	if cfg.RunOnce {
		failed := false
		for name, fn := range map[string]func(context.Context) error{
			"reset_daily_habits": j.resetDailyHabits,
			"settle_dividends":   j.settleDividends,
		} {
			if err := fn(ctx); err != nil {
				logger.Error("job failed", "job", name, "err", err)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	schedule := []struct {
		name string
		expr string
		fn   func(context.Context) error
	}{
		{"reset_daily_habits", cfg.ReconcileSchedule, j.resetDailyHabits},
		{"settle_dividends", cfg.DividendSchedule, j.settleDividends},
	}
	for _, s := range schedule {
		if _, err := c.AddFunc(s.expr, j.run(ctx, s.name, s.fn)); err != nil {
			logger.Error("failed to schedule job", "job", s.name, "schedule", s.expr, "err", err)
			os.Exit(1)
		}
		logger.Info("scheduled job", "job", s.name, "schedule", s.expr)
	}

	c.Start()
	logger.Info("worker started")
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("worker shutdown")
}

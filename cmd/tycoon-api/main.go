package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habittycoon/internal/api"
	"habittycoon/internal/auth"
	"habittycoon/internal/config"
	"habittycoon/internal/db"
	"habittycoon/internal/events"
	"habittycoon/internal/game"
	"habittycoon/internal/lock"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel(cfg.LogLevel)}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, pool, db.Migrations(), logger)
		if err != nil {
			logger.Error("migrate failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "count", applied)
	}

	defaultLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("default timezone invalid, using UTC", "tz", cfg.DefaultTimezone, "err", err)
		defaultLoc = time.UTC
	}

	opts := []game.Option{game.WithDefaultLocation(defaultLoc)}
	var limiter *api.RateLimiter
	if rdb := db.ConnectRedis(ctx, cfg.RedisURL, logger); rdb != nil {
		defer rdb.Close()
		opts = append(opts, game.WithLocker(lock.NewRedis(rdb, logger)))
		limiter = api.NewRateLimiter(rdb, cfg.RateLimit, logger)
	}

	publisher := events.Connect(cfg.AMQPURL, logger)
	defer publisher.Close()
	opts = append(opts, game.WithPublisher(publisher))

	supabase := auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	var verifier auth.Verifier = supabase
	if cfg.SupabaseJWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.SupabaseJWTSecret, cfg.SupabaseURL, supabase)
	}

	gameSvc := game.NewService(pool, logger, opts...)
	server := api.New(cfg, logger, supabase, verifier, gameSvc, limiter)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tycoon api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

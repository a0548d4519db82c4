package db

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when url is empty or the server cannot be reached.
// Callers fall back to in-process locking and skip rate limiting.
func ConnectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(url) == "" {
		logger.Warn("redis url missing, using local locks and no rate limiting")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("redis url parse failed", "err", err)
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed", "err", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

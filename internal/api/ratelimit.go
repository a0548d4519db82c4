package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// counter is the subset of the redis client the limiter uses.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter caps write requests per user in a fixed window.
type RateLimiter struct {
	store  counter
	limit  int
	window time.Duration
	log    *slog.Logger
}

// NewRateLimiter returns nil, a no-op limiter, when client is nil.
func NewRateLimiter(client *redis.Client, perMinute int, logger *slog.Logger) *RateLimiter {
	if client == nil {
		return nil
	}
	return newRateLimiter(client, perMinute, time.Minute, logger)
}

func newRateLimiter(store counter, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{store: store, limit: limit, window: window, log: logger}
}

// Limit only counts writes. Reads and unauthenticated requests pass through,
// and a redis outage lets traffic through.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl == nil || rl.store == nil || rl.limit <= 0 || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		user, err := userFromContext(r.Context())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("tycoon:rate_limit:writes:%s", user.UserID)
		count, err := rl.store.Incr(r.Context(), key).Result()
		if err != nil {
			rl.log.Warn("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.store.Expire(r.Context(), key, rl.window)
		}
		if count > int64(rl.limit) {
			ttl, _ := rl.store.TTL(r.Context(), key).Result()
			if ttl <= 0 {
				ttl = rl.window
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

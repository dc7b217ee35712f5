package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter on Redis, keyed per caller. It fails
// open: if Redis is unreachable the request is allowed and the error logged,
// so ordering never depends on the limiter being up.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Allow consumes one unit of the caller's budget for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if r == nil || r.redis == nil || limit <= 0 {
		return true
	}

	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		slog.Error("rate limiter unavailable", "key", key, "error", err)
		return true
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, counterKey, window).Err(); err != nil {
			slog.Error("rate limiter expire failed", "key", key, "error", err)
		}
	}

	return count <= int64(limit)
}

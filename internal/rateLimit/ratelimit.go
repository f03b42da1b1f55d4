package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/atelierzen/booking-backend/internal/adapters/redis"
	"github.com/atelierzen/booking-backend/internal/observability"
)

// RateLimiter is a fixed-window counter backed by redis, shared across
// instances. Fails open when redis is unreachable; a broken limiter must
// not block webhooks.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}

	allowed := incr.Val() <= int64(rate)
	if !allowed {
		observability.RateLimitExceeded.Inc()
	}
	return allowed
}

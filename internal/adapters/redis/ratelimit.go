package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// RateLimiter counts actions per key in fixed windows. The bot router
// uses it to absorb button double-taps before they reach the
// orchestrator.
type RateLimiter struct {
	client *redis.Client
	logger observability.Logger
}

func NewRateLimiter(client *redis.Client, logger observability.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		// The limiter is advisory; a redis outage must not silence the
		// bot.
		rl.logger.WithError(err).Warn("rate limit check failed, allowing request")
		return true
	}

	return incr.Val() <= int64(rate)
}

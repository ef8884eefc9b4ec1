package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether a user may perform an action now
type RateLimiter interface {
	Allow(ctx context.Context, telegramID int64, action string) (bool, error)
}

// RedisRateLimiter is a fixed-window counter shared by every API instance
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter allows limit actions per window and user
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, telegramID int64, action string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", action, telegramID)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return incr.Val() <= int64(r.limit), nil
}

// NoopRateLimiter allows everything, used when Redis is not configured
type NoopRateLimiter struct{}

func (NoopRateLimiter) Allow(ctx context.Context, telegramID int64, action string) (bool, error) {
	return true, nil
}

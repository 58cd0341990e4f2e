// Package ratelimit implements a fixed-window request limiter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one Allow call
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows at most limit hits per key in each window
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// New creates a Limiter
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for key and reports whether it fits in the current window
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to set expiry on %s: %w", redisKey, err)
		}
	}

	res := Result{Limit: l.limit, Remaining: l.limit - int(count)}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if int(count) <= l.limit {
		res.Allowed = true
		return res, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read ttl of %s: %w", redisKey, err)
	}
	if ttl < 0 {
		// the expiry was lost; start a fresh window
		_ = l.client.PExpire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	res.RetryAfter = ttl
	return res, nil
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared across replicas.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedis allows limit events per window per key.
func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow implements [Limiter].
func (limiter *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := limiter.prefix + key

	count, err := limiter.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("ratelimit: incr %s: %w", redisKey, err)
	}

	// First hit opens the window
	if count == 1 {
		if err := limiter.client.Expire(ctx, redisKey, limiter.window).Err(); err != nil {
			return Decision{Allowed: true}, fmt.Errorf("ratelimit: expire %s: %w", redisKey, err)
		}
	}

	if count <= limiter.limit {
		return Decision{Allowed: true}, nil
	}

	ttl, err := limiter.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// A window without expiry would throttle the key forever
		_ = limiter.client.Expire(ctx, redisKey, limiter.window).Err()
		ttl = limiter.window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Reset clears the window of a key.
func (limiter *Redis) Reset(ctx context.Context, key string) error {
	return limiter.client.Del(ctx, limiter.prefix+key).Err()
}

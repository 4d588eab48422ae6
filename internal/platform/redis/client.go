// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

It is used for high-speed operations that require expiration or fan-out, such as
distributed rate-limiting windows and the notification outbox.

Core Responsibilities:

  - Volatility: Handles data with TTL (Time-To-Live).
  - Speed: Low-latency access compared to persistent SQL storage.
  - Safety: Manages connection pooling and retry logic automatically.

Redis is never on the correctness path of authentication: losing it degrades
throttling and delays notifications, nothing more.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// minIOTimeout keeps socket reads usable when the store timeout is tiny.
const minIOTimeout = 250 * time.Millisecond

// Options configures [NewClient].
type Options struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// Timeout bounds dialing and every ping. Socket reads and writes get half
	// of it, so a stalled command fails before the caller's own deadline.
	Timeout time.Duration

	// PoolSize caps open connections. Zero keeps the driver default.
	PoolSize int
}

// NewClient parses opts.URL and returns a client that answered a ping.
//
// # Parameters
//   - context: Context for the initial ping.
//   - opts: Connection settings.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, opts Options, logger *slog.Logger) (*redis.Client, error) {
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("redis: timeout must be positive, got %s", opts.Timeout)
	}

	options, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if opts.PoolSize > 0 {
		options.PoolSize = opts.PoolSize
		options.MinIdleConns = max(1, opts.PoolSize/5)
	}
	options.DialTimeout = opts.Timeout
	options.ReadTimeout = max(minIOTimeout, opts.Timeout/2)
	options.WriteTimeout = options.ReadTimeout

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
		slog.Duration("timeout", opts.Timeout),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy within the dial timeout.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, client.Options().DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}

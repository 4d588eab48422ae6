// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is a per-key token bucket limiter held in process memory.
// State resets on restart.
type Memory struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*memoryClient
}

// NewMemory returns a limiter refilling perSecond tokens per second up to burst.
// Keys idle for longer than ttl are dropped by [Memory.Run].
func NewMemory(perSecond float64, burst int, ttl time.Duration) *Memory {
	return &Memory{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*memoryClient),
	}
}

// PerMinute is shorthand for a limiter allowing n events per minute with a burst of n.
func PerMinute(n int, ttl time.Duration) *Memory {
	return NewMemory(float64(n)/60, n, ttl)
}

// Allow implements [Limiter].
func (memory *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := memory.now()

	memory.mu.Lock()
	defer memory.mu.Unlock()

	client, found := memory.clients[key]
	if !found {
		client = &memoryClient{limiter: rate.NewLimiter(memory.limit, memory.burst)}
		memory.clients[key] = client
	}
	client.lastSeen = now

	reservation := client.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: time.Minute}, nil
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		// Give the token back; the caller is rejected, not queued
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

// Run evicts idle keys every interval until ctx is cancelled.
func (memory *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			memory.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (memory *Memory) evictIdle() {
	cutoff := memory.now().Add(-memory.ttl)

	memory.mu.Lock()
	defer memory.mu.Unlock()

	for key, client := range memory.clients {
		if client.lastSeen.Before(cutoff) {
			delete(memory.clients, key)
		}
	}
}

// size returns the number of tracked keys.
func (memory *Memory) size() int {
	memory.mu.Lock()
	defer memory.mu.Unlock()
	return len(memory.clients)
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit provides keyed request throttling.

Two interchangeable implementations exist:

  - Memory: Token buckets per key (golang.org/x/time/rate), local to the process.
  - Redis: Fixed windows shared by every replica.

Both are constructed explicitly and injected; nothing here is global. Throttling
is abuse mitigation, not security enforcement, so callers fail open on errors.
*/
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one [Limiter.Allow] call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter admits or throttles events identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RetryAfterSeconds rounds the wait up to whole seconds, minimum one.
func (d Decision) RetryAfterSeconds() int {
	seconds := int((d.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/users/auth"
)

func TestLockoutPolicy_NextFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := auth.LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}

	future := now.Add(30 * time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name         string
		state        auth.LockState
		wantAttempts int
		wantLocked   bool
	}{
		{"first_failure", auth.LockState{}, 1, false},
		{"below_threshold", auth.LockState{Attempts: 3}, 4, false},
		{"reaches_threshold", auth.LockState{Attempts: 4}, 5, true},
		{"active_lock_unchanged", auth.LockState{Attempts: 5, IsLocked: true, LockUntil: &future}, 5, true},
		{"stale_lock_restarts", auth.LockState{Attempts: 5, IsLocked: true, LockUntil: &past}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := policy.NextFailure(tt.state, now)
			assert.Equal(t, tt.wantAttempts, next.Attempts)
			assert.Equal(t, tt.wantLocked, next.IsLocked)
			assert.Equal(t, tt.wantLocked, next.Active(now))
		})
	}
}

func TestLockoutPolicy_LockDuration(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := auth.LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}

	next := policy.NextFailure(auth.LockState{Attempts: 4}, now)
	require.NotNil(t, next.LockUntil)
	assert.Equal(t, now.Add(2*time.Hour), *next.LockUntil)

	assert.True(t, next.Active(now.Add(2*time.Hour-time.Second)))
	assert.False(t, next.Active(now.Add(2*time.Hour)), "the lock ends exactly at lockUntil")
	assert.True(t, next.Stale(now.Add(2*time.Hour)))
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Lockout Policy

// LockState is the failed-login bookkeeping of one account.
type LockState struct {
	Attempts  int
	IsLocked  bool
	LockUntil *time.Time
}

// Active reports whether the lock is in force at now.
func (state LockState) Active(now time.Time) bool {
	return state.IsLocked && state.LockUntil != nil && state.LockUntil.After(now)
}

// Stale reports whether a lock was set and has since expired.
func (state LockState) Stale(now time.Time) bool {
	return state.LockUntil != nil && !state.LockUntil.After(now)
}

// LockoutPolicy decides when repeated failures lock an account.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

/*
NextFailure returns the state after one more failed password check at now.

A lock still in force is returned unchanged. An expired lock is cleared and
the counter restarts, so the failure that follows it counts as the first.
Reaching the threshold sets a lock of policy.Duration.

Postgres applies the same transition in a single UPDATE (see
[PostgresUserRepository.RecordLoginFailure]); the two must stay in step.
*/
func (policy LockoutPolicy) NextFailure(state LockState, now time.Time) LockState {
	if state.Active(now) {
		return state
	}

	attempts := state.Attempts + 1
	if state.Stale(now) {
		attempts = 1
	}

	next := LockState{Attempts: attempts}
	if attempts >= policy.Threshold {
		until := now.Add(policy.Duration)
		next.IsLocked = true
		next.LockUntil = &until
	}
	return next
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package tokentest provides an in-memory refresh-token store for tests.
package tokentest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/token"
)

// Records is an in-memory [token.Repository].
type Records struct {
	mu      sync.Mutex
	records map[string]*token.Record
}

// NewRecords returns an empty store.
func NewRecords() *Records {
	return &Records{records: make(map[string]*token.Record)}
}

func (store *Records) Create(_ context.Context, record *token.Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.records {
		if existing.TokenHash == record.TokenHash {
			return apperr.Conflict("duplicate token")
		}
	}
	clone := *record
	store.records[record.ID] = &clone
	return nil
}

func (store *Records) FindByHash(_ context.Context, tokenHash string) (*token.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, record := range store.records {
		if record.TokenHash == tokenHash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Token")
}

func (store *Records) FindByID(_ context.Context, id string) (*token.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.records[id]
	if !ok {
		return nil, apperr.NotFound("Token")
	}
	clone := *record
	return &clone, nil
}

func (store *Records) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]*token.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	records := []*token.Record{}
	for _, record := range store.records {
		if record.UserID == userID && record.IsValid(now) {
			clone := *record
			records = append(records, &clone)
		}
	}
	slices.SortFunc(records, func(a, b *token.Record) int { return b.ExpiresAt.Compare(a.ExpiresAt) })
	return records, nil
}

func (store *Records) Touch(_ context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.records[id]
	if !ok {
		return apperr.NotFound("Token")
	}
	record.LastUsedAt = &at
	return nil
}

func (store *Records) Revoke(_ context.Context, id string, reason token.Reason, at time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.records[id]
	if !ok {
		return false, apperr.NotFound("Token")
	}
	if record.IsRevoked {
		return false, nil
	}
	record.IsRevoked, record.RevokedAt, record.RevokedReason = true, &at, reason
	return true, nil
}

func (store *Records) RevokeAllForUser(_ context.Context, userID string, reason token.Reason, at time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for _, record := range store.records {
		if record.UserID == userID && !record.IsRevoked {
			record.IsRevoked, record.RevokedAt, record.RevokedReason = true, &at, reason
			count++
		}
	}
	return count, nil
}

func (store *Records) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for id, record := range store.records {
		if record.ExpiresAt.Before(now) {
			delete(store.records, id)
			count++
		}
	}
	return count, nil
}

func (store *Records) DeleteRevokedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var count int64
	for id, record := range store.records {
		if record.IsRevoked && record.RevokedAt.Before(cutoff) {
			delete(store.records, id)
			count++
		}
	}
	return count, nil
}

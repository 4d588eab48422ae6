// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/pkg/uuid"
)

// Options tunes a [Manager].
type Options struct {
	// Rotate replaces the refresh token on every refresh. Off by default:
	// only the access token is reissued and the refresh token stays live.
	Rotate bool

	// RevokedRetention is how long revoked records are kept for audit.
	RevokedRetention time.Duration
}

// Manager mints, validates, rotates and revokes token pairs.
type Manager struct {
	repository Repository
	signer     *sec.TokenService
	options    Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager constructs a new [Manager]. metrics may be nil.
func NewManager(repository Repository, signer *sec.TokenService, options Options, observer *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		repository: repository,
		signer:     signer,
		options:    options,
		metrics:    observer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (manager *Manager) WithClock(now func() time.Time) *Manager {
	manager.now = now
	return manager
}

// # Minting

/*
Mint signs a fresh access/refresh pair and persists the refresh record.

Parameters:
  - context: context.Context
  - subject: Subject (user ID and email embedded in the access token)
  - meta: Metadata (client IP and user agent stored on the record)

Returns:
  - *Pair: Both tokens and their expiries
  - error: Signing or persistence failures
*/
func (manager *Manager) Mint(context context.Context, subject Subject, meta Metadata) (*Pair, error) {
	access, err := manager.signer.SignAccess(subject.UserID, subject.Email)
	if err != nil {
		return nil, fmt.Errorf("token_manager_sign_access_failed: %w", err)
	}

	sessionID := uuid.New()
	refresh, err := manager.signer.SignRefresh(subject.UserID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("token_manager_sign_refresh_failed: %w", err)
	}

	record := &Record{
		ID:        sessionID,
		UserID:    subject.UserID,
		TokenHash: sec.HashToken(refresh.Value),
		Type:      TypeRefresh,
		ExpiresAt: refresh.ExpiresAt,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Device:    ParseDevice(meta.UserAgent),
	}
	if err := manager.repository.Create(context, record); err != nil {
		return nil, fmt.Errorf("token_manager_persist_failed: %w", err)
	}

	manager.metrics.TokenIssued(string(sec.KindAccess))
	manager.metrics.TokenIssued(string(sec.KindRefresh))

	return &Pair{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
		SessionID:        sessionID,
		TokenType:        "Bearer",
	}, nil
}

// # Validation

/*
Validate checks a presented refresh token and returns its live record.

The JWT layer is checked first, then the persisted record must exist, be
neither revoked nor expired, and belong to the token's subject. On success the
record's lastUsedAt is stamped.

Returns:
  - *Record: The live record
  - error: Unauthorized for any invalid, expired or revoked token; storage errors as-is
*/
func (manager *Manager) Validate(context context.Context, refreshToken string) (*Record, error) {
	claims, err := manager.signer.VerifyRefresh(refreshToken)
	if err != nil {
		manager.metrics.TokenRefresh("invalid")
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Refresh token has expired")
		}
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	record, err := manager.repository.FindByHash(context, sec.HashToken(refreshToken))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			manager.metrics.TokenRefresh("unknown")
			return nil, apperr.Unauthorized("Invalid refresh token")
		}
		return nil, err
	}

	now := manager.now()
	if !record.IsValid(now) {
		manager.metrics.TokenRefresh("revoked")
		return nil, apperr.Unauthorized("Refresh token has been revoked or has expired")
	}

	if record.UserID != claims.Subject || record.ID != claims.SessionID {
		manager.metrics.TokenRefresh("mismatch")
		manager.logger.WarnContext(context, "refresh_token_subject_mismatch",
			slog.String("session_id", record.ID),
			slog.String("record_user_id", record.UserID),
			slog.String("claim_user_id", claims.Subject),
		)
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	if err := manager.repository.Touch(context, record.ID, now); err != nil {
		return nil, fmt.Errorf("token_manager_touch_failed: %w", err)
	}
	record.LastUsedAt = &now
	return record, nil
}

/*
Reissue exchanges a validated record for new credentials.

Without rotation the presented refresh token stays live and only a new access
token is signed. With rotation the record is revoked as rotated and a new pair
is minted.

Parameters:
  - context: context.Context
  - record: *Record (as returned by [Manager.Validate])
  - refreshToken: string (the presented token, echoed back when not rotating)
  - subject: Subject
  - meta: Metadata

Returns:
  - *Pair: The new credentials
  - error: Unauthorized when a concurrent refresh rotated the record first,
    signing or persistence failures
*/
func (manager *Manager) Reissue(context context.Context, record *Record, refreshToken string, subject Subject, meta Metadata) (*Pair, error) {
	if manager.options.Rotate {
		changed, err := manager.repository.Revoke(context, record.ID, ReasonRotated, manager.now())
		if err != nil {
			return nil, fmt.Errorf("token_manager_rotate_failed: %w", err)
		}

		// A concurrent refresh with the same token already rotated it
		if !changed {
			manager.metrics.TokenRefresh("replayed")
			manager.logger.WarnContext(context, "refresh_token_replayed",
				slog.String("user_id", record.UserID),
				slog.String("session_id", record.ID),
			)
			return nil, apperr.Unauthorized("Refresh token has been revoked or has expired")
		}
		manager.metrics.TokensRevoked(string(ReasonRotated), 1)

		pair, err := manager.Mint(context, subject, meta)
		if err != nil {
			return nil, err
		}
		manager.metrics.TokenRefresh("rotated")
		return pair, nil
	}

	access, err := manager.signer.SignAccess(subject.UserID, subject.Email)
	if err != nil {
		return nil, fmt.Errorf("token_manager_sign_access_failed: %w", err)
	}
	manager.metrics.TokenIssued(string(sec.KindAccess))
	manager.metrics.TokenRefresh("success")

	return &Pair{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: record.ExpiresAt,
		SessionID:        record.ID,
		TokenType:        "Bearer",
	}, nil
}

// # Queries

// Find returns a record by ID.
func (manager *Manager) Find(context context.Context, id string) (*Record, error) {
	return manager.repository.FindByID(context, id)
}

// ListActive returns the user's live sessions, newest first.
func (manager *Manager) ListActive(context context.Context, userID string) ([]*Record, error) {
	return manager.repository.ListActiveByUser(context, userID, manager.now())
}

// # Revocation

// Revoke marks one record revoked. Revoking twice is not an error.
func (manager *Manager) Revoke(context context.Context, id string, reason Reason) error {
	changed, err := manager.repository.Revoke(context, id, reason, manager.now())
	if err != nil {
		return err
	}
	if changed {
		manager.metrics.TokensRevoked(string(reason), 1)
	}
	return nil
}

// RevokeSession revokes a session on behalf of its owner. A session owned by
// someone else is reported as missing.
func (manager *Manager) RevokeSession(context context.Context, userID, sessionID string) error {
	record, err := manager.repository.FindByID(context, sessionID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return apperr.NotFound("Session")
	}
	return manager.Revoke(context, sessionID, ReasonSessionRevoked)
}

/*
RevokeByToken revokes the record behind a presented refresh token.

The signature is not checked: an expired or foreign-looking token can still be
logged out. A token with no record, or one owned by another user, is ignored.
*/
func (manager *Manager) RevokeByToken(context context.Context, userID, refreshToken string, reason Reason) error {
	record, err := manager.repository.FindByHash(context, sec.HashToken(refreshToken))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if userID != "" && record.UserID != userID {
		return nil
	}
	return manager.Revoke(context, record.ID, reason)
}

// RevokeAllForUser revokes every live record of a user and returns the count.
func (manager *Manager) RevokeAllForUser(context context.Context, userID string, reason Reason) (int64, error) {
	count, err := manager.repository.RevokeAllForUser(context, userID, reason, manager.now())
	if err != nil {
		return 0, err
	}
	manager.metrics.TokensRevoked(string(reason), count)

	if count > 0 {
		manager.logger.InfoContext(context, "tokens_revoked_for_user",
			slog.String("user_id", userID),
			slog.String("reason", string(reason)),
			slog.Int64("count", count),
		)
	}
	return count, nil
}

// # Garbage Collection

// SweepExpired deletes records past their expiry.
func (manager *Manager) SweepExpired(context context.Context) (int64, error) {
	count, err := manager.repository.DeleteExpired(context, manager.now())
	if err != nil {
		return 0, fmt.Errorf("token_manager_sweep_expired_failed: %w", err)
	}
	manager.metrics.SweepDeleted("expired", count)
	return count, nil
}

// SweepRevoked deletes revoked records older than the retention window.
func (manager *Manager) SweepRevoked(context context.Context) (int64, error) {
	cutoff := manager.now().Add(-manager.options.RevokedRetention)

	count, err := manager.repository.DeleteRevokedBefore(context, cutoff)
	if err != nil {
		return 0, fmt.Errorf("token_manager_sweep_revoked_failed: %w", err)
	}
	manager.metrics.SweepDeleted("revoked", count)
	return count, nil
}

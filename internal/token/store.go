// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"time"
)

// # Token Data Access

// Repository defines the data access contract for refresh-token records.
//
// Missing rows surface as apperr NotFound.
type Repository interface {

	/*
		Create persists a freshly minted record.

		Parameters:
		  - context: context.Context
		  - record: *Record

		Returns:
		  - error: Conflict on a duplicate hash, persistence failures
	*/
	Create(context context.Context, record *Record) error

	/*
		FindByHash returns the record whose token hash matches, revoked or not.

		Parameters:
		  - context: context.Context
		  - tokenHash: string (hex SHA-256 of the signed refresh token)

		Returns:
		  - *Record: Hydrated entity
		  - error: NotFound, retrieval failures
	*/
	FindByHash(context context.Context, tokenHash string) (*Record, error)

	// FindByID returns the record with the given ID, revoked or not.
	FindByID(context context.Context, id string) (*Record, error)

	// ListActiveByUser returns the user's valid records at now, newest first.
	ListActiveByUser(context context.Context, userID string, now time.Time) ([]*Record, error)

	// Touch stamps lastUsedAt.
	Touch(context context.Context, id string, at time.Time) error

	/*
		Revoke marks a record revoked. Revoking an already revoked record is a no-op.

		Parameters:
		  - context: context.Context
		  - id: string
		  - reason: Reason
		  - at: time.Time

		Returns:
		  - bool: true if this call changed the record
		  - error: NotFound if no record has this ID
	*/
	Revoke(context context.Context, id string, reason Reason, at time.Time) (bool, error)

	// RevokeAllForUser revokes every non-revoked record of a user and returns how many changed.
	RevokeAllForUser(context context.Context, userID string, reason Reason, at time.Time) (int64, error)

	// DeleteExpired removes records whose expiry is before now, in any revocation state.
	DeleteExpired(context context.Context, now time.Time) (int64, error)

	// DeleteRevokedBefore removes revoked records whose revocation is older than cutoff.
	DeleteRevokedBefore(context context.Context, cutoff time.Time) (int64, error)
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/warden/internal/rbac"
)

// # User Data Access

// UserRepository defines the data access contract for credential records.
//
// Emails are matched case-insensitively. Missing rows surface as apperr NotFound.
type UserRepository interface {

	// FindByID returns the user with the given ID.
	FindByID(context context.Context, id string) (*User, error)

	// FindByEmail returns the user with the given email.
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByVerificationHash returns the user holding an unexpired
		verification token with this digest.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - now: time.Time

		Returns:
		  - *User: The owner
		  - error: NotFound if no token matches or it has expired
	*/
	FindByVerificationHash(context context.Context, tokenHash string, now time.Time) (*User, error)

	// FindByResetHash is [UserRepository.FindByVerificationHash] for reset tokens.
	FindByResetHash(context context.Context, tokenHash string, now time.Time) (*User, error)

	/*
		Create persists a new user.

		Parameters:
		  - context: context.Context
		  - user: *User (ID set by the caller, timestamps filled in)

		Returns:
		  - error: Conflict on a duplicate email
	*/
	Create(context context.Context, user *User) error

	// UpdateProfile persists names and preferences.
	UpdateProfile(context context.Context, user *User) error

	// UpdatePassword replaces the hash, stamps passwordChangedAt and clears any reset token.
	UpdatePassword(context context.Context, id, passwordHash string, changedAt time.Time) error

	/*
		RecordLoginFailure applies [LockoutPolicy.NextFailure] atomically and
		returns the resulting state.

		Parameters:
		  - context: context.Context
		  - id: string
		  - policy: LockoutPolicy
		  - now: time.Time

		Returns:
		  - LockState: State after this failure
		  - error: NotFound, persistence failures
	*/
	RecordLoginFailure(context context.Context, id string, policy LockoutPolicy, now time.Time) (LockState, error)

	// RecordLoginSuccess resets the counter and lock and stamps lastLoginAt.
	RecordLoginSuccess(context context.Context, id string, at time.Time) error

	// ClearLock resets the counter and lock without touching lastLoginAt.
	ClearLock(context context.Context, id string) error

	// SetVerificationToken replaces the verification token digest and expiry.
	SetVerificationToken(context context.Context, id, tokenHash string, expiresAt time.Time) error

	// MarkVerified sets the verified flag and consumes the verification token.
	MarkVerified(context context.Context, id string) error

	// SetResetToken replaces the reset token digest and expiry.
	SetResetToken(context context.Context, id, tokenHash string, expiresAt time.Time) error

	// SetRole moves the user to another role.
	SetRole(context context.Context, id, roleID string) error

	// SetActive flips the active flag.
	SetActive(context context.Context, id string, active bool) error

	// AddLinkedProvider records provider in linkedProviders, once.
	AddLinkedProvider(context context.Context, id string, provider Provider) error

	// RemoveLinkedProvider drops provider from linkedProviders.
	RemoveLinkedProvider(context context.Context, id string, provider Provider) error

	// Delete removes the user. OAuth links go with it.
	Delete(context context.Context, id string) error

	// The role store counts and lists members through the same table.
	rbac.MemberDirectory
}

// # OAuth Link Data Access

// OAuthLinkRepository defines the data access contract for OAuth links.
type OAuthLinkRepository interface {

	/*
		Upsert creates the (user, provider) link or refreshes it, reactivating
		a previously unlinked one.

		Parameters:
		  - context: context.Context
		  - link: *OAuthLink (ID used only on insert)

		Returns:
		  - error: Persistence failures
	*/
	Upsert(context context.Context, link *OAuthLink) error

	// FindByProviderID returns the active link for an external identity.
	FindByProviderID(context context.Context, provider Provider, providerID string) (*OAuthLink, error)

	// ListByUser returns the user's active links.
	ListByUser(context context.Context, userID string) ([]*OAuthLink, error)

	// Deactivate soft-removes the (user, provider) link.
	Deactivate(context context.Context, userID string, provider Provider) error
}

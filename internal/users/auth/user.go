// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the credential store and the account lifecycle.

It defines the core domain entities (User, OAuthLink) and the logic for
registration, login with lockout, refresh, password change and reset, email
verification, OAuth sign-in and administrative account operations.

# Architecture

Sessions are owned by the token package, roles by rbac. This package composes
both and never touches their storage directly.
*/
package auth

import (
	"slices"
	"time"

	"github.com/taibuivan/warden/internal/rbac"
)

// # Providers

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// IsOAuth reports whether p is an external identity provider.
func (p Provider) IsOAuth() bool {
	return p.Valid() && p != ProviderLocal
}

// # Domain Entities

// Preferences holds per-account settings.
type Preferences struct {
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
	MarketingEmails    bool   `json:"marketing_emails"`
}

// DefaultPreferences are applied to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:           "en",
		Timezone:           "UTC",
		EmailNotifications: true,
		PushNotifications:  true,
	}
}

// User is a credential record.
//
// The one-time token fields hold SHA-256 digests only. Role is hydrated by
// the service for responses and is not persisted with the user.
type User struct {
	ID                    string      `json:"id"`
	FirstName             string      `json:"first_name"`
	LastName              string      `json:"last_name"`
	Email                 string      `json:"email"`
	PasswordHash          *string     `json:"-"`
	RoleID                string      `json:"role_id"`
	Role                  *rbac.Role  `json:"role,omitempty"`
	Provider              Provider    `json:"provider"`
	LinkedProviders       []Provider  `json:"linked_providers"`
	IsVerified            bool        `json:"is_verified"`
	VerificationTokenHash *string     `json:"-"`
	VerificationExpiresAt *time.Time  `json:"-"`
	ResetTokenHash        *string     `json:"-"`
	ResetExpiresAt        *time.Time  `json:"-"`
	IsActive              bool        `json:"is_active"`
	IsLocked              bool        `json:"is_locked"`
	LockUntil             *time.Time  `json:"lock_until,omitempty"`
	LoginAttempts         int         `json:"-"`
	LastLoginAt           *time.Time  `json:"last_login_at,omitempty"`
	PasswordChangedAt     *time.Time  `json:"password_changed_at,omitempty"`
	Preferences           Preferences `json:"preferences"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsAccountLocked reports whether a lock is in force at now. A lock whose
// expiry has passed is stale and does not count.
func (u *User) IsAccountLocked(now time.Time) bool {
	return u.LockState().Active(now)
}

// LockState extracts the lockout fields.
func (u *User) LockState() LockState {
	return LockState{Attempts: u.LoginAttempts, IsLocked: u.IsLocked, LockUntil: u.LockUntil}
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt. Both sides are compared in microseconds, the
// precision Postgres keeps for timestamptz.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.UnixMicro() > issuedAt.UnixMicro()
}

// HasLinkedProvider reports whether provider is among the linked providers.
func (u *User) HasLinkedProvider(provider Provider) bool {
	return slices.Contains(u.LinkedProviders, provider)
}

// OAuthLink ties a user to an external identity.
type OAuthLink struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Provider     Provider       `json:"provider"`
	ProviderID   string         `json:"provider_id"`
	AccessToken  string         `json:"-"`
	RefreshToken string         `json:"-"`
	Profile      map[string]any `json:"profile"`
	Scopes       []string       `json:"scopes"`
	IsActive     bool           `json:"is_active"`
	LastSyncAt   *time.Time     `json:"last_sync_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// OAuthProfile is the identity a provider returned after a code exchange.
type OAuthProfile struct {
	ProviderID    string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Raw           map[string]any
}

// ProviderTokens are the provider's own credentials for the user.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	Scopes       []string
}

// # Field Identifiers

// Field names used in validation errors and response bodies.
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldRefreshToken    = "refresh_token"
	FieldRoleID          = "role_id"
	FieldLanguage        = "language"
	FieldTimezone        = "timezone"
	FieldProvider        = "provider"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresAt       = "expires_at"
	FieldUser            = "user"
	FieldMessage         = "message"
)

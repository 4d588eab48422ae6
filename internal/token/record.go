// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package token manages the refresh-token lifecycle.

Access tokens are stateless signed JWTs and are never stored. Refresh tokens
are persisted as a [Record] keyed by the SHA-256 of the signed token, so a
store leak does not hand out live bearer credentials.

State machine per record:

	issued -> active -> rotated | revoked | expired

Rotated is a revoked state reached through refresh, told apart by [ReasonRotated].
*/
package token

import "time"

// # Types & Reasons

// Type tags a persisted record. Only refresh tokens are stored today.
type Type string

const (
	TypeRefresh Type = "refresh"
	TypeAccess  Type = "access"
)

// Reason records why a token was revoked.
type Reason string

const (
	ReasonLogout          Reason = "logout"
	ReasonLogoutAll       Reason = "logout_all"
	ReasonPasswordChanged Reason = "password_changed"
	ReasonPasswordReset   Reason = "password_reset"
	ReasonRoleChanged     Reason = "role_changed"
	ReasonDeactivated     Reason = "deactivated"
	ReasonAccountDeleted  Reason = "account_deleted"
	ReasonSessionRevoked  Reason = "session_revoked"
	ReasonRotated         Reason = "rotated"
)

// # Domain Entities

// Device is the coarse client description parsed from a user agent.
type Device struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Class   string `json:"class"`
}

// Record is a persisted refresh token. It doubles as the session view
// returned by the session listing endpoints.
type Record struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	TokenHash string `json:"-"`
	Type      Type   `json:"type"`

	ExpiresAt     time.Time  `json:"expires_at"`
	IsRevoked     bool       `json:"is_revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason Reason     `json:"revoked_reason,omitempty"`

	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Device    Device `json:"device"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsValid reports whether the record may still be exchanged for access tokens.
func (r *Record) IsValid(now time.Time) bool {
	return !r.IsRevoked && r.ExpiresAt.After(now)
}

// # Inputs & Outputs

// Subject identifies whom a token pair is minted for.
type Subject struct {
	UserID string
	Email  string
}

// Metadata describes the client that requested a token.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// Pair is the result of a successful login or refresh.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
	TokenType        string    `json:"token_type"`
}

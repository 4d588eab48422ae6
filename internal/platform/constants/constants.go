// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and client tracking TTLs.
  - Security: Cookie names, default role, token lifetimes.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "warden"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// NotifyDeliveryTimeout bounds a single background notification delivery.
	NotifyDeliveryTimeout = 10 * time.Second

	// SweepTimeout bounds one scheduled token sweep.
	SweepTimeout = 2 * time.Minute
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often idle client entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute

	// RedisPrefixRateLimit namespaces distributed rate-limit windows.
	RedisPrefixRateLimit = "warden:ratelimit:"
)

// # Authentication

const (
	// DefaultRoleName is assigned to every new account. Bootstrap must have created it.
	DefaultRoleName = "user"

	// AccessTokenCookieName carries the access token for browser clients.
	AccessTokenCookieName = "access_token"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"

	// OAuthStateCookieName stores the anti-CSRF state during an OAuth round trip.
	OAuthStateCookieName = "oauth_state"

	// OAuthStateCookiePath scopes the state cookie to the OAuth routes.
	OAuthStateCookiePath = "/api/v1/auth/oauth"

	// OAuthExchangeTimeout bounds the code exchange and profile calls to a provider.
	OAuthExchangeTimeout = 10 * time.Second

	// OAuthStateTTL bounds how long a user may take on the provider's consent screen.
	OAuthStateTTL = 10 * time.Minute
)

// # Admin Role Names
//
// System roles are created by bootstrap and cannot be renamed, so checks by
// name are safe for these two.

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

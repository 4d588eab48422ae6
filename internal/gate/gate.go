// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gate turns an access token into an authorized [access.Principal].

# Flow

 1. The JWT signature and expiry are verified. An expired token is reported
    as TOKEN_EXPIRED so clients know to refresh; anything else is a plain
    UNAUTHORIZED.
 2. The user is loaded. A user that no longer exists cannot authenticate.
 3. Deactivated accounts and accounts under an active lock are refused.
 4. A token issued before the last password change is refused as
    PASSWORD_CHANGED. This is how stateless access tokens are revoked.
 5. The role is resolved. A missing or deactivated role admits nobody.

Route-level checks such as [access.RequirePermission] then run against the
principal; the gate itself never looks at permissions.
*/
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/users/auth"
)

// # Collaborators

// Verifier checks access token signatures. [sec.TokenService] satisfies it.
type Verifier interface {
	VerifyAccess(tokenString string) (*sec.AccessClaims, error)
}

// Users loads accounts. [auth.UserRepository] satisfies it.
type Users interface {
	FindByID(context context.Context, id string) (*auth.User, error)
}

// Roles resolves roles. [rbac.Service] satisfies it.
type Roles interface {
	Get(context context.Context, id string) (*rbac.Role, error)
}

// # Gate

// Gate implements [middleware.Authenticator].
type Gate struct {
	verifier Verifier
	users    Users
	roles    Roles
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a new [Gate].
func New(verifier Verifier, users Users, roles Roles, logger *slog.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		users:    users,
		roles:    roles,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for lock checks.
func (gate *Gate) WithClock(now func() time.Time) *Gate {
	gate.now = now
	return gate
}

/*
Authenticate resolves bearer into a principal, or rejects it.

Parameters:
  - context: context.Context
  - bearer: string (raw access token)

Returns:
  - *access.Principal: Identity with its role level and permissions
  - error: Unauthorized (TOKEN_EXPIRED, PASSWORD_CHANGED), Forbidden (ACCOUNT_LOCKED), Unavailable
*/
func (gate *Gate) Authenticate(context context.Context, bearer string) (*access.Principal, error) {
	if bearer == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}

	// 1. Signature and expiry
	claims, err := gate.verifier.VerifyAccess(bearer)
	if errors.Is(err, sec.ErrTokenExpired) {
		return nil, apperr.TokenExpired()
	}
	if err != nil {
		gate.logger.DebugContext(context, "gate_token_rejected", slog.String("error", err.Error()))
		return nil, apperr.Unauthorized("Invalid token")
	}

	// 2. Identity
	user, err := gate.users.FindByID(context, claims.Subject)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("Identity no longer exists")
	}
	if err != nil {
		gate.logger.ErrorContext(context, "gate_user_lookup_failed",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Unavailable(err)
	}

	// 3. Account status
	if !user.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}
	if user.IsAccountLocked(gate.now()) {
		return nil, apperr.AccountLocked(*user.LockUntil)
	}

	// 4. Tokens minted before a password change are dead
	issuedAt := claims.IssuedTime()
	if user.ChangedPasswordAfter(issuedAt) {
		return nil, apperr.PasswordChanged()
	}

	// 5. Role
	role, err := gate.roles.Get(context, user.RoleID)
	if apperr.Is(err, apperr.KindNotFound) {
		gate.logger.WarnContext(context, "gate_role_missing",
			slog.String("user_id", user.ID),
			slog.String("role_id", user.RoleID),
		)
		return nil, apperr.Forbidden("Account has no valid role")
	}
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	if !role.IsActive {
		return nil, apperr.Forbidden("Role is deactivated")
	}

	return &access.Principal{
		UserID:        user.ID,
		Email:         user.Email,
		RoleID:        role.ID,
		RoleName:      role.Name,
		RoleLevel:     role.Level,
		Permissions:   role.Permissions,
		IsVerified:    user.IsVerified,
		TokenIssuedAt: issuedAt,
	}, nil
}

// Authorize authenticates bearer and runs checks against the principal.
// It is the non-HTTP form of mounting [middleware.Guard.Require].
func (gate *Gate) Authorize(context context.Context, bearer string, checks ...access.Check) (*access.Principal, error) {
	principal, err := gate.Authenticate(context, bearer)
	if err != nil {
		return nil, err
	}
	if err := access.Evaluate(access.Request{Principal: principal}, checks...); err != nil {
		return nil, err
	}
	return principal, nil
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/pkg/uuid"
)

// MinPasswordLength applies to registration, change and reset.
const MinPasswordLength = 8

// Login outcomes recorded in metrics.
const (
	loginSuccess            = "success"
	loginInvalidCredentials = "invalid_credentials"
	loginLocked             = "locked"
	loginInactive           = "inactive"
)

// # Collaborators

// RoleDirectory resolves roles and keeps their member counters current.
// [rbac.Service] satisfies it.
type RoleDirectory interface {
	Get(context context.Context, id string) (*rbac.Role, error)
	GetByName(context context.Context, name string) (*rbac.Role, error)
	RecountUsers(context context.Context, roleIDs ...string) error
}

// Hasher hashes and verifies passwords. [sec.BcryptHasher] satisfies it.
type Hasher interface {
	Hash(plainTextPassword string) (string, error)
	Verify(plainTextPassword, existingHash string) bool
}

// Notifier schedules an out-of-band message. [notify.Dispatcher] satisfies it.
type Notifier interface {
	Notify(context context.Context, to string, kind notify.Kind, data map[string]string)
}

// Options tunes the account security policy.
type Options struct {
	Lockout         LockoutPolicy
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Users    UserRepository
	Links    OAuthLinkRepository
	Roles    RoleDirectory
	Tokens   *token.Manager
	Hasher   Hasher
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// # Service

// Service implements the credential store operations.
type Service struct {
	users    UserRepository
	links    OAuthLinkRepository
	roles    RoleDirectory
	tokens   *token.Manager
	hasher   Hasher
	notifier Notifier
	options  Options
	observer *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new [Service].
func NewService(deps Dependencies, options Options) *Service {
	return &Service{
		users:    deps.Users,
		links:    deps.Links,
		roles:    deps.Roles,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		notifier: deps.Notifier,
		options:  options,
		observer: deps.Metrics,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests use it to walk through lockouts.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// AuthResult is what a successful sign-in returns.
type AuthResult struct {
	User   *User       `json:"user"`
	Tokens *token.Pair `json:"tokens"`
}

// # Registration

// RegisterInput defines the payload for creating a local account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

/*
Register creates a local account with the default role and signs it in.

A verification token is issued and mailed, but sign-in does not wait for it.

Parameters:
  - context: context.Context
  - input: RegisterInput
  - meta: token.Metadata (client IP and user agent for the session)

Returns:
  - *AuthResult: The new user and its token pair
  - error: Validation, Conflict on a taken email, Internal if the default role is missing
*/
func (service *Service) Register(context context.Context, input RegisterInput, meta token.Metadata) (*AuthResult, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = NormalizeEmail(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		MaxLen(FieldFirstName, input.FirstName, 100).
		MaxLen(FieldLastName, input.LastName, 100).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Password(FieldPassword, input.Password, MinPasswordLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 1. Email must be free
	if _, err := service.users.FindByEmail(context, input.Email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	// 2. Default role is a bootstrap precondition
	role, err := service.defaultRole(context)
	if err != nil {
		return nil, err
	}

	// 3. Hash and issue the verification token
	hash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	verification, err := sec.NewOneTimeToken(service.now(), service.options.VerificationTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_verification_token_failed: %w", err)
	}

	user := &User{
		ID:                    uuid.New(),
		FirstName:             input.FirstName,
		LastName:              input.LastName,
		Email:                 input.Email,
		PasswordHash:          &hash,
		RoleID:                role.ID,
		Provider:              ProviderLocal,
		LinkedProviders:       []Provider{},
		VerificationTokenHash: &verification.Hash,
		VerificationExpiresAt: &verification.ExpiresAt,
		IsActive:              true,
		Preferences:           DefaultPreferences(),
	}

	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}
	user.Role = role
	service.recount(context, role.ID)

	service.logger.InfoContext(context, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("role", role.Name),
	)

	// 4. Side effects never fail the registration
	service.notifier.Notify(context, user.Email, notify.KindVerification, map[string]string{
		notify.DataName:  user.FirstName,
		notify.DataToken: verification.Raw,
		notify.DataTTL:   service.options.VerificationTTL.String(),
	})
	service.notifier.Notify(context, user.Email, notify.KindWelcome, map[string]string{
		notify.DataName: user.FirstName,
	})

	pair, err := service.tokens.Mint(context, token.Subject{UserID: user.ID, Email: user.Email}, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// # Login

/*
Login verifies a password and signs the user in.

An unknown email and a wrong password produce the same error. A lock in
force is reported before the password is looked at, with its expiry.

Parameters:
  - context: context.Context
  - email: string
  - password: string
  - meta: token.Metadata

Returns:
  - *AuthResult: The user and a new token pair
  - error: Unauthorized, Forbidden (ACCOUNT_LOCKED or deactivated)
*/
func (service *Service) Login(context context.Context, email, password string, meta token.Metadata) (*AuthResult, error) {
	invalid := apperr.Unauthorized("Invalid email or password")
	now := service.now()

	user, err := service.users.FindByEmail(context, NormalizeEmail(email))
	if apperr.Is(err, apperr.KindNotFound) {
		service.observer.LoginAttempt(loginInvalidCredentials)
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	// 1. A lock in force wins, even over the right password
	if user.IsAccountLocked(now) {
		service.observer.LoginAttempt(loginLocked)
		return nil, apperr.AccountLocked(*user.LockUntil)
	}

	// 2. Password check, counting failures
	if !user.HasPassword() || !service.hasher.Verify(password, *user.PasswordHash) {
		return nil, service.loginFailed(context, user, now, invalid)
	}

	// 3. Deactivated accounts get no session
	if !user.IsActive {
		service.observer.LoginAttempt(loginInactive)
		return nil, apperr.Forbidden("Account is deactivated")
	}

	if err := service.users.RecordLoginSuccess(context, user.ID, now); err != nil {
		return nil, err
	}
	user.LoginAttempts, user.IsLocked, user.LockUntil, user.LastLoginAt = 0, false, nil, &now

	pair, err := service.tokens.Mint(context, token.Subject{UserID: user.ID, Email: user.Email}, meta)
	if err != nil {
		return nil, err
	}

	service.observer.LoginAttempt(loginSuccess)
	service.logger.InfoContext(context, "login_succeeded", slog.String("user_id", user.ID))

	if err := service.hydrateRole(context, user); err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (service *Service) loginFailed(context context.Context, user *User, now time.Time, invalid error) error {
	state, err := service.users.RecordLoginFailure(context, user.ID, service.options.Lockout, now)
	if err != nil {
		return err
	}

	if state.Active(now) {
		service.observer.LoginAttempt(loginLocked)
		service.observer.Lockout()
		service.logger.WarnContext(context, "account_locked",
			slog.String("user_id", user.ID),
			slog.Int("attempts", state.Attempts),
			slog.Time("lock_until", *state.LockUntil),
		)
		return apperr.AccountLocked(*state.LockUntil)
	}

	service.observer.LoginAttempt(loginInvalidCredentials)
	service.logger.InfoContext(context, "login_failed",
		slog.String("user_id", user.ID),
		slog.Int("attempts", state.Attempts),
	)
	return invalid
}

// # Sessions

/*
Logout ends one session, or all of them when refreshToken is empty.

A refresh token that is unknown or belongs to someone else is ignored.

Parameters:
  - context: context.Context
  - userID: string (authenticated caller)
  - refreshToken: string (optional)

Returns:
  - error: Persistence failures
*/
func (service *Service) Logout(context context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return service.LogoutAll(context, userID)
	}
	return service.tokens.RevokeByToken(context, userID, refreshToken, token.ReasonLogout)
}

// LogoutAll revokes every session of the user.
func (service *Service) LogoutAll(context context.Context, userID string) error {
	_, err := service.tokens.RevokeAllForUser(context, userID, token.ReasonLogoutAll)
	return err
}

/*
Refresh exchanges a refresh token for a new access token.

The account is re-checked on every exchange, so a deactivated or locked
account stops refreshing at once.

Parameters:
  - context: context.Context
  - refreshToken: string
  - meta: token.Metadata

Returns:
  - *token.Pair: New access token, and a new refresh token when rotation is on
  - error: Unauthorized, Forbidden
*/
func (service *Service) Refresh(context context.Context, refreshToken string, meta token.Metadata) (*token.Pair, error) {
	record, err := service.tokens.Validate(context, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, record.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("Account no longer exists")
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}
	if user.IsAccountLocked(service.now()) {
		return nil, apperr.AccountLocked(*user.LockUntil)
	}

	return service.tokens.Reissue(context, record, refreshToken, token.Subject{UserID: user.ID, Email: user.Email}, meta)
}

// # Helpers

// NormalizeEmail trims and case-folds an address for storage and lookup.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

func (service *Service) defaultRole(context context.Context) (*rbac.Role, error) {
	role, err := service.roles.GetByName(context, constants.DefaultRoleName)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Internal(fmt.Errorf("auth_service_default_role_missing: %q", constants.DefaultRoleName))
	}
	return role, err
}

func (service *Service) hydrateRole(context context.Context, user *User) error {
	role, err := service.roles.Get(context, user.RoleID)
	if err != nil {
		return fmt.Errorf("auth_service_role_lookup_failed: %w", err)
	}
	user.Role = role
	return nil
}

// recount refreshes role counters. The counters are advisory, so failures
// are logged and swallowed.
func (service *Service) recount(context context.Context, roleIDs ...string) {
	if err := service.roles.RecountUsers(context, roleIDs...); err != nil {
		service.logger.WarnContext(context, "role_recount_failed", slog.String("error", err.Error()))
	}
}

func (service *Service) revokeAll(context context.Context, userID string, reason token.Reason) error {
	if _, err := service.tokens.RevokeAllForUser(context, userID, reason); err != nil {
		return fmt.Errorf("auth_service_revoke_sessions_failed: %w", err)
	}
	return nil
}

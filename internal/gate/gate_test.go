// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/gate"
	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/rbac/rbactest"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/internal/token/tokentest"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/internal/users/auth/authtest"
)

// # Fixtures

type silentNotifier struct{}

func (silentNotifier) Notify(context.Context, string, notify.Kind, map[string]string) {}

type fixture struct {
	gate    *gate.Gate
	auth    *auth.Service
	roles   *rbac.Service
	users   *authtest.Users
	signer  *sec.TokenService
	now     *time.Time
	account *auth.AuthResult
}

func (fx *fixture) advance(d time.Duration) {
	*fx.now = fx.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	observer := metrics.New()

	users := authtest.NewUsers()
	roles := rbac.NewService(rbactest.NewRoles(), users, logger)
	_, err := roles.Bootstrap(ctx)
	require.NoError(t, err)

	signer, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "access-secret-access-secret-access-secret",
		RefreshSecret: "refresh-secret-refresh-secret-refresh-secret",
		Issuer:        "warden-test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	signer.WithClock(clock)

	hasher, err := sec.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	tokens := token.NewManager(tokentest.NewRecords(), signer, token.Options{}, observer, logger).WithClock(clock)
	service := auth.NewService(auth.Dependencies{
		Users:    users,
		Links:    authtest.NewLinks(),
		Roles:    roles,
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: silentNotifier{},
		Metrics:  observer,
		Logger:   logger,
	}, auth.Options{
		Lockout:         auth.LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour},
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}).WithClock(clock)

	account, err := service.Register(ctx, auth.RegisterInput{
		FirstName: "Alice",
		Email:     "alice@example.com",
		Password:  "Str0ng!Passw0rd",
	}, token.Metadata{})
	require.NoError(t, err)

	return &fixture{
		gate:    gate.New(signer, users, roles, logger).WithClock(clock),
		auth:    service,
		roles:   roles,
		users:   users,
		signer:  signer,
		now:     &now,
		account: account,
	}
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	ae := apperr.As(err)
	require.NotNil(t, ae, "expected an application error, got %v", err)
	return ae.Code
}

// # Authenticate

func TestGate_Authenticate(t *testing.T) {
	fx := newFixture(t)

	principal, err := fx.gate.Authenticate(context.Background(), fx.account.Tokens.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, fx.account.User.ID, principal.UserID)
	assert.Equal(t, "alice@example.com", principal.Email)
	assert.Equal(t, "user", principal.RoleName)
	assert.Equal(t, 3, principal.RoleLevel)
	assert.False(t, principal.IsVerified)
	assert.Equal(t, fx.now.Unix(), principal.TokenIssuedAt.Unix())
	assert.True(t, principal.Can(access.ResourcePosts, access.ActionCreate))
	assert.False(t, principal.Can(access.ResourceUsers, access.ActionDelete))
}

func TestGate_Authenticate_TokenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.gate.Authenticate(ctx, "")
		assert.Equal(t, "UNAUTHORIZED", codeOf(t, err))
	})

	t.Run("malformed", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.gate.Authenticate(ctx, "not.a.jwt")
		assert.Equal(t, "UNAUTHORIZED", codeOf(t, err))
	})

	t.Run("refresh_token_is_not_an_access_token", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.gate.Authenticate(ctx, fx.account.Tokens.RefreshToken)
		assert.Equal(t, "UNAUTHORIZED", codeOf(t, err))
	})

	t.Run("expired_is_distinguished", func(t *testing.T) {
		fx := newFixture(t)
		fx.advance(16 * time.Minute)
		_, err := fx.gate.Authenticate(ctx, fx.account.Tokens.AccessToken)
		assert.Equal(t, "TOKEN_EXPIRED", codeOf(t, err))
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})
}

func TestGate_Authenticate_AccountStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted_user", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.users.Delete(ctx, fx.account.User.ID))
		_, err := fx.gate.Authenticate(ctx, fx.account.Tokens.AccessToken)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("deactivated", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.users.SetActive(ctx, fx.account.User.ID, false))
		_, err := fx.gate.Authenticate(ctx, fx.account.Tokens.AccessToken)
		assert.Equal(t, "FORBIDDEN", codeOf(t, err))
	})

	t.Run("locked", func(t *testing.T) {
		fx := newFixture(t)
		for range 5 {
			_, _ = fx.auth.Login(ctx, "alice@example.com", "Wr0ngPassword", token.Metadata{})
		}
		_, err := fx.gate.Authenticate(ctx, fx.account.Tokens.AccessToken)
		assert.Equal(t, "ACCOUNT_LOCKED", codeOf(t, err))
		assert.Contains(t, apperr.As(err).Meta, "locked_until")
	})

	t.Run("role_deactivated", func(t *testing.T) {
		fx := newFixture(t)
		inactive := false
		_, err := fx.roles.Update(ctx, fx.account.User.RoleID, rbac.UpdateRoleInput{IsActive: &inactive})
		require.NoError(t, err)

		_, err = fx.gate.Authenticate(ctx, fx.account.Tokens.AccessToken)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})
}

func TestGate_PasswordChangeInvalidatesAccessTokens(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	old := fx.account.Tokens.AccessToken
	_, err := fx.gate.Authenticate(ctx, old)
	require.NoError(t, err)

	fx.advance(time.Second)
	pair, err := fx.auth.ChangePassword(ctx, fx.account.User.ID, "Str0ng!Passw0rd", "N3wPassword!", token.Metadata{})
	require.NoError(t, err)

	_, err = fx.gate.Authenticate(ctx, old)
	assert.Equal(t, "PASSWORD_CHANGED", codeOf(t, err), "the old token is still signed and unexpired")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = fx.gate.Authenticate(ctx, pair.AccessToken)
	assert.NoError(t, err, "the pair minted by the change itself stays valid")
}

func TestGate_PasswordChangeInvalidatesAccessTokens_SameSecond(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	old := fx.account.Tokens.AccessToken

	fx.advance(900 * time.Millisecond)
	pair, err := fx.auth.ChangePassword(ctx, fx.account.User.ID, "Str0ng!Passw0rd", "N3wPassword!", token.Metadata{})
	require.NoError(t, err)

	_, err = fx.gate.Authenticate(ctx, old)
	assert.Equal(t, "PASSWORD_CHANGED", codeOf(t, err), "issued earlier within the same second")

	principal, err := fx.gate.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, fx.now.UnixMicro(), principal.TokenIssuedAt.UnixMicro())
}

// # Authorize

func TestGate_Authorize_CustomRole(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	editor, err := fx.roles.Create(ctx, rbac.CreateRoleInput{
		Name:  "editor",
		Level: 4,
		Permissions: []access.Permission{
			access.Grant(access.ResourcePosts, access.ActionCreate, access.ActionRead, access.ActionUpdate),
		},
	})
	require.NoError(t, err)

	admin, err := fx.roles.GetByName(ctx, "admin")
	require.NoError(t, err)
	actor := &access.Principal{UserID: "admin-1", RoleName: admin.Name, RoleLevel: admin.Level}

	_, err = fx.auth.AssignRole(ctx, actor, fx.account.User.ID, editor.ID)
	require.NoError(t, err)

	bearer := fx.account.Tokens.AccessToken

	_, err = fx.gate.Authorize(ctx, bearer, access.RequirePermission(access.ResourcePosts, access.ActionDelete))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	principal, err := fx.gate.Authorize(ctx, bearer, access.RequirePermission(access.ResourcePosts, access.ActionUpdate))
	require.NoError(t, err)
	assert.Equal(t, "editor", principal.RoleName)
	assert.Equal(t, 4, principal.RoleLevel)

	_, err = fx.gate.Authorize(ctx, bearer, access.RequireMinLevel(5))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/pkg/pointer"
)

func codeOf(t *testing.T, err error) string {
	t.Helper()
	ae := apperr.As(err)
	require.NotNil(t, ae, "expected an application error, got %v", err)
	return ae.Code
}

// # Registration

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result := fx.register(t, "  Alice@Example.COM ")
	user := result.User

	assert.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, user.Role)
	assert.Equal(t, "user", user.Role.Name)
	assert.Equal(t, 3, user.Role.Level)
	assert.Equal(t, auth.ProviderLocal, user.Provider)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsVerified)
	assert.Nil(t, user.ResetTokenHash)
	assert.Nil(t, user.ResetExpiresAt)
	assert.Equal(t, auth.DefaultPreferences(), user.Preferences)

	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, strongPassword, *user.PasswordHash)

	require.NotNil(t, result.Tokens)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	verification := fx.notifier.last(notify.KindVerification)
	require.NotNil(t, verification)
	assert.Equal(t, "alice@example.com", verification.To)
	assert.NotEmpty(t, verification.Data[notify.DataToken])
	assert.Equal(t, 1, fx.notifier.count(notify.KindWelcome))

	role, err := fx.roles.GetByName(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, 1, role.UserCount)

	t.Run("duplicate_email", func(t *testing.T) {
		_, err := fx.service.Register(ctx, auth.RegisterInput{
			FirstName: "Other",
			Email:     "ALICE@example.com",
			Password:  strongPassword,
		}, clientMeta)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestService_Register_Validation(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name  string
		input auth.RegisterInput
		field string
	}{
		{"missing_first_name", auth.RegisterInput{Email: "a@example.com", Password: strongPassword}, auth.FieldFirstName},
		{"bad_email", auth.RegisterInput{FirstName: "A", Email: "not-an-email", Password: strongPassword}, auth.FieldEmail},
		{"short_password", auth.RegisterInput{FirstName: "A", Email: "a@example.com", Password: "abc1"}, auth.FieldPassword},
		{"password_without_digit", auth.RegisterInput{FirstName: "A", Email: "a@example.com", Password: "onlyletters"}, auth.FieldPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.service.Register(context.Background(), tt.input, clientMeta)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apperr.KindValidation, ae.Kind)
			require.NotEmpty(t, ae.Details)
			assert.Equal(t, tt.field, ae.Details[0].Field)
		})
	}
}

// # Login and Lockout

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	result, err := fx.service.Login(ctx, "ALICE@example.com", strongPassword, clientMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	require.NotNil(t, result.User.LastLoginAt)
	assert.Equal(t, *fx.now, *result.User.LastLoginAt)

	t.Run("unknown_email_looks_like_wrong_password", func(t *testing.T) {
		_, unknownErr := fx.service.Login(ctx, "nobody@example.com", strongPassword, clientMeta)
		_, wrongErr := fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)

		require.True(t, apperr.Is(unknownErr, apperr.KindUnauthorized))
		require.True(t, apperr.Is(wrongErr, apperr.KindUnauthorized))
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})
}

func TestService_Login_LocksAfterThreshold(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	for attempt := 1; attempt <= 4; attempt++ {
		_, err := fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)
		assert.Equal(t, "UNAUTHORIZED", codeOf(t, err), "attempt %d", attempt)
	}

	_, err := fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)
	assert.Equal(t, "ACCOUNT_LOCKED", codeOf(t, err), "the failure reaching the threshold reports the lock")

	user, err := fx.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.True(t, user.IsLocked)
	assert.Equal(t, 5, user.LoginAttempts)
	require.NotNil(t, user.LockUntil)
	assert.Equal(t, fx.now.Add(2*time.Hour), *user.LockUntil)

	t.Run("correct_password_still_locked", func(t *testing.T) {
		_, err := fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
		assert.Equal(t, "ACCOUNT_LOCKED", codeOf(t, err))
	})

	t.Run("lock_expires", func(t *testing.T) {
		fx.advance(2*time.Hour + time.Second)

		_, err := fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
		require.NoError(t, err)

		user, err := fx.users.FindByID(ctx, registered.User.ID)
		require.NoError(t, err)
		assert.Zero(t, user.LoginAttempts)
		assert.False(t, user.IsLocked)
		assert.Nil(t, user.LockUntil)
	})
}

func TestService_Login_StaleLockRestartsCount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	expired := fx.now.Add(-time.Minute)
	user, err := fx.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	user.LoginAttempts, user.IsLocked, user.LockUntil = 5, true, &expired
	fx.users.Put(user)

	_, err = fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)
	assert.Equal(t, "UNAUTHORIZED", codeOf(t, err))

	user, err = fx.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.LoginAttempts)
	assert.False(t, user.IsLocked)
}

func TestService_Login_Deactivated(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	require.NoError(t, fx.users.SetActive(ctx, registered.User.ID, false))

	_, err := fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

// # Sessions

func TestService_RefreshAndLogout(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	pair, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	require.NoError(t, fx.service.Logout(ctx, registered.User.ID, registered.Tokens.RefreshToken))

	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	t.Run("unknown_token_is_ignored", func(t *testing.T) {
		assert.NoError(t, fx.service.Logout(ctx, registered.User.ID, "not-a-token"))
	})
}

func TestService_LogoutAll(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	second, err := fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
	require.NoError(t, err)

	sessions, err := fx.service.ListSessions(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, fx.service.Logout(ctx, registered.User.ID, ""))

	sessions, err = fx.service.ListSessions(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = fx.service.Refresh(ctx, second.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestService_Refresh_DeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	require.NoError(t, fx.users.SetActive(ctx, registered.User.ID, false))

	_, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestService_RevokeSession(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	alice := fx.register(t, "alice@example.com")
	bob := fx.register(t, "bob@example.com")

	err := fx.service.RevokeSession(ctx, bob.User.ID, alice.Tokens.SessionID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "sessions of other users are invisible")

	require.NoError(t, fx.service.RevokeSession(ctx, alice.User.ID, alice.Tokens.SessionID))
	_, err = fx.service.Refresh(ctx, alice.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

// # Password Change

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")
	userID := registered.User.ID

	t.Run("wrong_current", func(t *testing.T) {
		_, err := fx.service.ChangePassword(ctx, userID, "Wr0ngPassword", "N3wPassword!", clientMeta)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("same_as_current", func(t *testing.T) {
		_, err := fx.service.ChangePassword(ctx, userID, strongPassword, strongPassword, clientMeta)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	fx.advance(time.Second)
	pair, err := fx.service.ChangePassword(ctx, userID, strongPassword, "N3wPassword!", clientMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "older sessions are revoked")

	_, err = fx.service.Refresh(ctx, pair.RefreshToken, clientMeta)
	assert.NoError(t, err, "the new pair keeps the caller signed in")

	user, err := fx.users.FindByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.PasswordChangedAt)
	assert.Equal(t, *fx.now, *user.PasswordChangedAt)

	_, err = fx.service.Login(ctx, "alice@example.com", "N3wPassword!", clientMeta)
	assert.NoError(t, err)
	assert.Equal(t, 1, fx.notifier.count(notify.KindPasswordChanged))
}

func TestService_ChangePassword_PasswordlessAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.OAuthLogin(ctx, auth.ProviderGoogle, auth.OAuthProfile{
		ProviderID:    "google-1",
		Email:         "carol@example.com",
		EmailVerified: true,
		FirstName:     "Carol",
	}, auth.ProviderTokens{AccessToken: "ya29"}, clientMeta)
	require.NoError(t, err)

	_, err = fx.service.ChangePassword(ctx, result.User.ID, "anything1", "N3wPassword!", clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindConstraint))
}

// # Password Reset

func TestService_ForgotPassword_UnknownEmail(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.service.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Nil(t, fx.notifier.last(notify.KindPasswordReset))
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	require.NoError(t, fx.service.ForgotPassword(ctx, "Alice@example.com"))
	message := fx.notifier.last(notify.KindPasswordReset)
	require.NotNil(t, message)
	raw := message.Data[notify.DataToken]
	require.NotEmpty(t, raw)

	stored, err := fx.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	assert.NotEqual(t, raw, *stored.ResetTokenHash, "only the digest is stored")

	t.Run("wrong_token", func(t *testing.T) {
		err := fx.service.ResetPassword(ctx, "deadbeef", "N3wPassword!")
		assert.Equal(t, "INVALID_TOKEN", codeOf(t, err))
	})

	require.NoError(t, fx.service.ResetPassword(ctx, raw, "N3wPassword!"))

	t.Run("token_is_single_use", func(t *testing.T) {
		err := fx.service.ResetPassword(ctx, raw, "An0therPassword")
		assert.Equal(t, "INVALID_TOKEN", codeOf(t, err))
	})

	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = fx.service.Login(ctx, "alice@example.com", "N3wPassword!", clientMeta)
	assert.NoError(t, err)
}

func TestService_ResetPassword_Expired(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	require.NoError(t, fx.service.ForgotPassword(ctx, "alice@example.com"))
	raw := fx.notifier.last(notify.KindPasswordReset).Data[notify.DataToken]

	fx.advance(time.Hour + time.Second)
	err := fx.service.ResetPassword(ctx, raw, "N3wPassword!")
	assert.Equal(t, "INVALID_TOKEN", codeOf(t, err))
}

func TestService_ResetPassword_LiftsLock(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	for range 5 {
		_, _ = fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)
	}
	_, err := fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
	require.Equal(t, "ACCOUNT_LOCKED", codeOf(t, err))

	require.NoError(t, fx.service.ForgotPassword(ctx, "alice@example.com"))
	raw := fx.notifier.last(notify.KindPasswordReset).Data[notify.DataToken]
	require.NoError(t, fx.service.ResetPassword(ctx, raw, "N3wPassword!"))

	_, err = fx.service.Login(ctx, "alice@example.com", "N3wPassword!", clientMeta)
	assert.NoError(t, err)
}

// # Email Verification

func TestService_VerifyEmail(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	raw := fx.notifier.last(notify.KindVerification).Data[notify.DataToken]
	require.NoError(t, fx.service.VerifyEmail(ctx, raw))

	user, err := fx.users.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.VerificationTokenHash)

	err = fx.service.VerifyEmail(ctx, raw)
	assert.Equal(t, "INVALID_TOKEN", codeOf(t, err))

	err = fx.service.ResendVerification(ctx, "alice@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestService_ResendVerification(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	first := fx.notifier.last(notify.KindVerification).Data[notify.DataToken]
	require.NoError(t, fx.service.ResendVerification(ctx, "alice@example.com"))
	second := fx.notifier.last(notify.KindVerification).Data[notify.DataToken]
	assert.NotEqual(t, first, second)

	assert.Equal(t, "INVALID_TOKEN", codeOf(t, fx.service.VerifyEmail(ctx, first)), "the old token is replaced")
	assert.NoError(t, fx.service.VerifyEmail(ctx, second))

	assert.NoError(t, fx.service.ResendVerification(ctx, "nobody@example.com"))
}

func TestService_VerifyEmail_Expired(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	raw := fx.notifier.last(notify.KindVerification).Data[notify.DataToken]
	fx.advance(25 * time.Hour)
	assert.Equal(t, "INVALID_TOKEN", codeOf(t, fx.service.VerifyEmail(ctx, raw)))
}

// # Profile

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	user, err := fx.service.UpdateProfile(ctx, registered.User.ID, auth.UpdateProfileInput{
		FirstName:       pointer.To(" Alicia "),
		Timezone:        pointer.To("Asia/Tokyo"),
		MarketingEmails: pointer.To(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", user.FirstName)
	assert.Equal(t, "Liddell", user.LastName)
	assert.Equal(t, "Asia/Tokyo", user.Preferences.Timezone)
	assert.True(t, user.Preferences.MarketingEmails)
	assert.Equal(t, "en", user.Preferences.Language)

	_, err = fx.service.UpdateProfile(ctx, registered.User.ID, auth.UpdateProfileInput{Timezone: pointer.To("Mars/Olympus")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	err := fx.service.DeleteAccount(ctx, registered.User.ID, "Wr0ngPassword")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	require.NoError(t, fx.service.DeleteAccount(ctx, registered.User.ID, strongPassword))

	_, err = fx.users.FindByID(ctx, registered.User.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	role, err := fx.roles.GetByName(ctx, "user")
	require.NoError(t, err)
	assert.Zero(t, role.UserCount)
}

// # Administration

func adminPrincipal(t *testing.T, fx *fixture, name string) *access.Principal {
	t.Helper()
	role, err := fx.roles.GetByName(context.Background(), name)
	require.NoError(t, err)
	return &access.Principal{
		UserID:      "actor-" + name,
		RoleID:      role.ID,
		RoleName:    role.Name,
		RoleLevel:   role.Level,
		Permissions: role.Permissions,
	}
}

func TestService_AssignRole(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")
	admin := adminPrincipal(t, fx, "admin")

	superadmin, err := fx.roles.GetByName(ctx, "superadmin")
	require.NoError(t, err)
	moderator, err := fx.roles.GetByName(ctx, "moderator")
	require.NoError(t, err)

	t.Run("above_actor_level", func(t *testing.T) {
		_, err := fx.service.AssignRole(ctx, admin, registered.User.ID, superadmin.ID)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("unknown_role", func(t *testing.T) {
		_, err := fx.service.AssignRole(ctx, admin, registered.User.ID, "missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	user, err := fx.service.AssignRole(ctx, admin, registered.User.ID, moderator.ID)
	require.NoError(t, err)
	assert.Equal(t, moderator.ID, user.RoleID)
	assert.Equal(t, "moderator", user.Role.Name)

	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "a role change ends existing sessions")

	moderator, err = fx.roles.GetByName(ctx, "moderator")
	require.NoError(t, err)
	assert.Equal(t, 1, moderator.UserCount)

	defaultRole, err := fx.roles.GetByName(ctx, "user")
	require.NoError(t, err)
	assert.Zero(t, defaultRole.UserCount)
}

func TestService_SetActive(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")
	admin := adminPrincipal(t, fx, "admin")

	t.Run("cannot_deactivate_self", func(t *testing.T) {
		self := *admin
		self.UserID = registered.User.ID
		err := fx.service.SetActive(ctx, &self, registered.User.ID, false)
		assert.True(t, apperr.Is(err, apperr.KindConstraint))
	})

	require.NoError(t, fx.service.SetActive(ctx, admin, registered.User.ID, false))

	_, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken, clientMeta)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	require.NoError(t, fx.service.SetActive(ctx, admin, registered.User.ID, true))
	_, err = fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
	assert.NoError(t, err)
}

func TestService_Unlock(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice@example.com")

	for range 5 {
		_, _ = fx.service.Login(ctx, "alice@example.com", "Wr0ngPassword", clientMeta)
	}
	user, err := fx.users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, user.IsLocked)

	require.NoError(t, fx.service.Unlock(ctx, user.ID))
	_, err = fx.service.Login(ctx, "alice@example.com", strongPassword, clientMeta)
	assert.NoError(t, err)
}

// # OAuth

func TestService_OAuthLogin_CreatesAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.OAuthLogin(ctx, auth.ProviderGoogle, auth.OAuthProfile{
		ProviderID:    "google-1",
		Email:         "Carol@Example.com",
		EmailVerified: true,
	}, auth.ProviderTokens{AccessToken: "ya29", Scopes: []string{"openid", "email"}}, clientMeta)
	require.NoError(t, err)

	user := result.User
	assert.Equal(t, "carol@example.com", user.Email)
	assert.Equal(t, "carol", user.FirstName, "first name falls back to the mailbox")
	assert.Equal(t, auth.ProviderGoogle, user.Provider)
	assert.False(t, user.HasPassword())
	assert.True(t, user.IsVerified)
	assert.Equal(t, []auth.Provider{auth.ProviderGoogle}, user.LinkedProviders)
	assert.Equal(t, "user", user.Role.Name)
	assert.NotEmpty(t, result.Tokens.AccessToken)

	again, err := fx.service.OAuthLogin(ctx, auth.ProviderGoogle, auth.OAuthProfile{
		ProviderID: "google-1",
		Email:      "carol@example.com",
	}, auth.ProviderTokens{AccessToken: "ya29-new"}, clientMeta)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.User.ID)

	links, err := fx.service.ListLinks(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "ya29-new", links[0].AccessToken, "provider tokens are refreshed on every sign-in")
}

func TestService_OAuthLogin_LinksExistingAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "alice@example.com")

	result, err := fx.service.OAuthLogin(ctx, auth.ProviderGitHub, auth.OAuthProfile{
		ProviderID:    "gh-1",
		Email:         "alice@example.com",
		EmailVerified: true,
	}, auth.ProviderTokens{AccessToken: "gho"}, clientMeta)
	require.NoError(t, err)

	assert.Equal(t, registered.User.ID, result.User.ID)
	assert.Equal(t, auth.ProviderLocal, result.User.Provider)
	assert.True(t, result.User.HasLinkedProvider(auth.ProviderGitHub))
	assert.True(t, result.User.IsVerified, "a provider-verified email verifies the account")

	t.Run("different_identity_same_provider", func(t *testing.T) {
		_, err := fx.service.OAuthLogin(ctx, auth.ProviderGitHub, auth.OAuthProfile{
			ProviderID:    "gh-2",
			Email:         "alice@example.com",
			EmailVerified: true,
		}, auth.ProviderTokens{}, clientMeta)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("unsupported_provider", func(t *testing.T) {
		_, err := fx.service.OAuthLogin(ctx, auth.ProviderLocal, auth.OAuthProfile{
			ProviderID: "x",
			Email:      "alice@example.com",
		}, auth.ProviderTokens{}, clientMeta)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestService_OAuthLogin_UnverifiedEmailDoesNotLink(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	registered := fx.register(t, "victim@example.com")

	result, err := fx.service.OAuthLogin(ctx, auth.ProviderGitHub, auth.OAuthProfile{
		ProviderID:    "gh-42",
		Email:         "victim@example.com",
		EmailVerified: false,
	}, auth.ProviderTokens{AccessToken: "gho"}, clientMeta)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	links, err := fx.service.ListLinks(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Empty(t, links, "no link is written for an unverified email")

	user, err := fx.service.Profile(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.False(t, user.HasLinkedProvider(auth.ProviderGitHub))
}

func TestService_UnlinkProvider(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	carol, err := fx.service.OAuthLogin(ctx, auth.ProviderGoogle, auth.OAuthProfile{
		ProviderID: "google-1", Email: "carol@example.com", EmailVerified: true,
	}, auth.ProviderTokens{}, clientMeta)
	require.NoError(t, err)

	err = fx.service.UnlinkProvider(ctx, carol.User.ID, auth.ProviderGoogle)
	assert.True(t, apperr.Is(err, apperr.KindConstraint), "the last sign-in method stays")

	err = fx.service.UnlinkProvider(ctx, carol.User.ID, auth.ProviderGitHub)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = fx.service.OAuthLogin(ctx, auth.ProviderGitHub, auth.OAuthProfile{
		ProviderID: "gh-9", Email: "carol@example.com",
	}, auth.ProviderTokens{}, clientMeta)
	require.NoError(t, err)

	require.NoError(t, fx.service.UnlinkProvider(ctx, carol.User.ID, auth.ProviderGoogle))

	user, err := fx.users.FindByID(ctx, carol.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Provider{auth.ProviderGitHub}, user.LinkedProviders)

	links, err := fx.service.ListLinks(ctx, carol.User.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, auth.ProviderGitHub, links[0].Provider)
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/postgres/pgtest"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/pkg/pagination"
	"github.com/taibuivan/warden/pkg/uuid"
)

type postgresFixture struct {
	users  *auth.PostgresUserRepository
	links  *auth.PostgresOAuthLinkRepository
	roleID string
}

func newPostgresFixture(t *testing.T) *postgresFixture {
	t.Helper()
	pool := pgtest.NewPool(t)
	users := auth.NewPostgresUserRepository(pool)

	roles := rbac.NewService(rbac.NewPostgresRepository(pool), users, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := roles.Bootstrap(t.Context())
	require.NoError(t, err)

	role, err := roles.GetByName(t.Context(), "user")
	require.NoError(t, err)

	return &postgresFixture{users: users, links: auth.NewPostgresOAuthLinkRepository(pool), roleID: role.ID}
}

func (fx *postgresFixture) createUser(t *testing.T, email string) *auth.User {
	t.Helper()
	hash := "$2a$04$0123456789012345678901uQzZ3sZ1w6y3m3Yb0qLx9Yb0qLx9Yb0q"
	user := &auth.User{
		ID:              uuid.New(),
		FirstName:       "Alice",
		LastName:        "Liddell",
		Email:           email,
		PasswordHash:    &hash,
		RoleID:          fx.roleID,
		Provider:        auth.ProviderLocal,
		LinkedProviders: []auth.Provider{},
		IsActive:        true,
		Preferences:     auth.DefaultPreferences(),
	}
	require.NoError(t, fx.users.Create(t.Context(), user))
	return user
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	fx := newPostgresFixture(t)
	created := fx.createUser(t, "alice@example.com")

	found, err := fx.users.FindByEmail(t.Context(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, auth.DefaultPreferences(), found.Preferences)
	assert.Empty(t, found.LinkedProviders)

	t.Run("duplicate_email_conflicts", func(t *testing.T) {
		hash := "x"
		err := fx.users.Create(t.Context(), &auth.User{
			ID: uuid.New(), FirstName: "A", Email: "Alice@Example.com", PasswordHash: &hash,
			RoleID: fx.roleID, Provider: auth.ProviderLocal, IsActive: true, Preferences: auth.DefaultPreferences(),
		})
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	})

	t.Run("unknown_id_not_found", func(t *testing.T) {
		_, err := fx.users.FindByID(t.Context(), uuid.New())
		assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
	})
}

func TestPostgresUserRepository_RecordLoginFailure(t *testing.T) {
	fx := newPostgresFixture(t)
	user := fx.createUser(t, "bob@example.com")
	policy := auth.LockoutPolicy{Threshold: 3, Duration: time.Hour}
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Replays the same transitions as LockoutPolicy.NextFailure
	var state auth.LockState
	for i := 1; i <= 3; i++ {
		var err error
		state, err = fx.users.RecordLoginFailure(t.Context(), user.ID, policy, now)
		require.NoError(t, err)
		assert.Equal(t, i, state.Attempts)
	}
	require.True(t, state.IsLocked)
	assert.WithinDuration(t, now.Add(time.Hour), *state.LockUntil, time.Millisecond)

	t.Run("active_lock_unchanged", func(t *testing.T) {
		next, err := fx.users.RecordLoginFailure(t.Context(), user.ID, policy, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 3, next.Attempts)
		assert.True(t, next.IsLocked)
	})

	t.Run("stale_lock_restarts", func(t *testing.T) {
		next, err := fx.users.RecordLoginFailure(t.Context(), user.ID, policy, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, next.Attempts)
		assert.False(t, next.IsLocked)
		assert.Nil(t, next.LockUntil)
	})

	t.Run("success_clears", func(t *testing.T) {
		require.NoError(t, fx.users.RecordLoginSuccess(t.Context(), user.ID, now))
		found, err := fx.users.FindByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Zero(t, found.LoginAttempts)
		assert.False(t, found.IsLocked)
		require.NotNil(t, found.LastLoginAt)
	})
}

func TestPostgresUserRepository_RecordLoginFailure_Concurrent(t *testing.T) {
	fx := newPostgresFixture(t)
	user := fx.createUser(t, "carol@example.com")
	policy := auth.LockoutPolicy{Threshold: 5, Duration: time.Hour}
	now := time.Now().UTC()

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		attempts []int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := fx.users.RecordLoginFailure(context.Background(), user.ID, policy, now)
			assert.NoError(t, err)
			mu.Lock()
			attempts = append(attempts, state.Attempts)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// No update is lost: each count below the threshold is seen exactly once
	sort.Ints(attempts)
	assert.Equal(t, []int{1, 2, 3, 4}, attempts[:4])
	for _, n := range attempts[4:] {
		assert.Equal(t, 5, n)
	}

	found, err := fx.users.FindByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.LoginAttempts)
	assert.True(t, found.IsLocked)
}

func TestPostgresUserRepository_OneTimeTokens(t *testing.T) {
	fx := newPostgresFixture(t)
	user := fx.createUser(t, "dave@example.com")
	now := time.Now().UTC()
	hash := "a3f1c2d4e5b60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

	require.NoError(t, fx.users.SetResetToken(t.Context(), user.ID, hash, now.Add(time.Hour)))

	found, err := fx.users.FindByResetHash(t.Context(), hash, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = fx.users.FindByResetHash(t.Context(), hash, now.Add(2*time.Hour))
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "expired reset token is not found")

	require.NoError(t, fx.users.UpdatePassword(t.Context(), user.ID, "new-hash", now))
	_, err = fx.users.FindByResetHash(t.Context(), hash, now)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "a password change consumes the reset token")
}

func TestPostgresUserRepository_Members(t *testing.T) {
	fx := newPostgresFixture(t)
	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		fx.createUser(t, email)
	}

	count, err := fx.users.CountByRole(t.Context(), fx.roleID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	all, err := fx.users.CountAllByRole(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, all[fx.roleID])

	members, total, err := fx.users.ListByRole(t.Context(), fx.roleID, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, members, 2)
}

func TestPostgresOAuthLinkRepository(t *testing.T) {
	fx := newPostgresFixture(t)
	user := fx.createUser(t, "erin@example.com")
	now := time.Now().UTC()

	link := &auth.OAuthLink{
		ID:          uuid.New(),
		UserID:      user.ID,
		Provider:    auth.ProviderGitHub,
		ProviderID:  "583231",
		AccessToken: "gho_first",
		Profile:     map[string]any{"login": "octocat"},
		Scopes:      []string{"read:user"},
		LastSyncAt:  &now,
	}
	require.NoError(t, fx.links.Upsert(t.Context(), link))

	// A second callback refreshes the same row
	link.ID = uuid.New()
	link.AccessToken = "gho_second"
	require.NoError(t, fx.links.Upsert(t.Context(), link))

	links, err := fx.links.ListByUser(t.Context(), user.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "octocat", links[0].Profile["login"])

	found, err := fx.links.FindByProviderID(t.Context(), auth.ProviderGitHub, "583231")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, "gho_second", found.AccessToken)

	require.NoError(t, fx.links.Deactivate(t.Context(), user.ID, auth.ProviderGitHub))
	_, err = fx.links.FindByProviderID(t.Context(), auth.ProviderGitHub, "583231")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = fx.links.Deactivate(t.Context(), user.ID, auth.ProviderGitHub)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

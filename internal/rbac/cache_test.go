// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/rbac/rbactest"
)

func TestCachedRepository(t *testing.T) {
	ctx := context.Background()
	backing := rbactest.NewRoles()
	cached := rbac.NewCachedRepository(backing, 16, time.Minute)

	role := &rbac.Role{
		ID:          "r1",
		Name:        "editor",
		Level:       4,
		IsActive:    true,
		Permissions: []access.Permission{access.Grant(access.ResourcePosts, access.ActionRead)},
	}
	require.NoError(t, cached.Create(ctx, role))

	first, err := cached.FindByID(ctx, "r1")
	require.NoError(t, err)
	_, err = cached.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.FindCalls(), "second read is served from cache")

	t.Run("returned_values_are_isolated", func(t *testing.T) {
		first.Permissions[0].Actions[0] = access.ActionDelete
		again, err := cached.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, again.Can(access.ResourcePosts, access.ActionRead))
	})

	t.Run("writes_evict", func(t *testing.T) {
		require.NoError(t, cached.UpdatePermissions(ctx, "r1", []access.Permission{
			access.Grant(access.ResourcePosts, access.ActionManage),
		}))
		updated, err := cached.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, updated.Can(access.ResourcePosts, access.ActionDelete))
	})

	t.Run("misses_are_not_cached", func(t *testing.T) {
		_, err := cached.FindByID(ctx, "missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("delete_evicts", func(t *testing.T) {
		require.NoError(t, cached.Delete(ctx, "r1"))
		_, err := cached.FindByID(ctx, "r1")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestCachedRepository_TTL(t *testing.T) {
	ctx := context.Background()
	backing := rbactest.NewRoles()
	cached := rbac.NewCachedRepository(backing, 16, 20*time.Millisecond)

	require.NoError(t, backing.Create(ctx, &rbac.Role{ID: "r1", Name: "editor", Level: 4}))

	_, err := cached.FindByID(ctx, "r1")
	require.NoError(t, err)

	// Out-of-band write (another replica) becomes visible after the ttl
	require.NoError(t, backing.SetUserCount(ctx, "r1", 7))

	stale, err := cached.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, stale.UserCount)

	assert.Eventually(t, func() bool {
		fresh, err := cached.FindByID(ctx, "r1")
		return err == nil && fresh.UserCount == 7
	}, time.Second, 10*time.Millisecond)
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/pkg/pagination"
	"github.com/taibuivan/warden/pkg/pointer"
)

// # Create

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService()

	role, err := service.Create(ctx, rbac.CreateRoleInput{
		Name:  "Editor",
		Level: 4,
		Permissions: []access.Permission{
			access.Grant(access.ResourcePosts, access.ActionCreate, access.ActionRead),
			access.Grant(access.ResourcePosts, access.ActionUpdate, access.ActionRead),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "editor", role.Name)
	assert.Equal(t, "Editor", role.DisplayName)
	assert.False(t, role.IsSystem)
	assert.True(t, role.IsActive)
	require.Len(t, role.Permissions, 1, "duplicate resource entries are merged")
	assert.ElementsMatch(t,
		[]access.Action{access.ActionCreate, access.ActionRead, access.ActionUpdate},
		role.Permissions[0].Actions,
	)

	t.Run("duplicate_name_case_insensitive", func(t *testing.T) {
		_, err := service.Create(ctx, rbac.CreateRoleInput{Name: "EDITOR", Level: 2})
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestService_Create_Validation(t *testing.T) {
	service, _, _ := newService()

	tests := []struct {
		name  string
		input rbac.CreateRoleInput
		field string
	}{
		{"empty_name", rbac.CreateRoleInput{Level: 3}, "name"},
		{"name_with_digits", rbac.CreateRoleInput{Name: "editor2", Level: 3}, "name"},
		{"level_too_high", rbac.CreateRoleInput{Name: "editor", Level: 11}, "level"},
		{"level_too_low", rbac.CreateRoleInput{Name: "editor", Level: 0}, "level"},
		{"unknown_resource", rbac.CreateRoleInput{
			Name: "editor", Level: 3,
			Permissions: []access.Permission{access.Grant("spaceships", access.ActionRead)},
		}, "permissions"},
		{"unknown_action", rbac.CreateRoleInput{
			Name: "editor", Level: 3,
			Permissions: []access.Permission{access.Grant(access.ResourcePosts, "publish")},
		}, "permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tt.input)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apperr.KindValidation, ae.Kind)

			var fields []string
			for _, detail := range ae.Details {
				fields = append(fields, detail.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

// # Update & Delete

func TestService_SystemRoleProtection(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService()

	_, err := service.Bootstrap(ctx)
	require.NoError(t, err)

	admin, err := service.GetByName(ctx, "admin")
	require.NoError(t, err)

	t.Run("rename_rejected", func(t *testing.T) {
		_, err := service.Update(ctx, admin.ID, rbac.UpdateRoleInput{Name: pointer.To("boss")})
		assert.True(t, apperr.Is(err, apperr.KindConstraint))
	})

	t.Run("same_name_allowed", func(t *testing.T) {
		updated, err := service.Update(ctx, admin.ID, rbac.UpdateRoleInput{
			Name:        pointer.To("admin"),
			Description: pointer.To("Runs the place"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Runs the place", updated.Description)
	})

	t.Run("delete_rejected_without_force", func(t *testing.T) {
		err := service.Delete(ctx, admin.ID, false)
		assert.True(t, apperr.Is(err, apperr.KindConstraint))
	})

	t.Run("force_delete_allowed", func(t *testing.T) {
		require.NoError(t, service.Delete(ctx, admin.ID, true))
		_, err := service.Get(ctx, admin.ID)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestService_Delete_ReferencedRole(t *testing.T) {
	ctx := context.Background()
	service, _, members := newService()

	role, err := service.Create(ctx, rbac.CreateRoleInput{Name: "editor", Level: 4})
	require.NoError(t, err)
	members.assign(role.ID, rbac.Member{ID: "u1", Email: "a@x.com"})

	err = service.Delete(ctx, role.ID, true)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.KindConstraint, ae.Kind)
	assert.Equal(t, 1, ae.Meta["user_count"])

	members.byRole[role.ID] = nil
	assert.NoError(t, service.Delete(ctx, role.ID, false))
}

func TestService_Update_RenameConflict(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService()

	_, err := service.Create(ctx, rbac.CreateRoleInput{Name: "editor", Level: 4})
	require.NoError(t, err)
	writer, err := service.Create(ctx, rbac.CreateRoleInput{Name: "writer", Level: 4})
	require.NoError(t, err)

	_, err = service.Update(ctx, writer.ID, rbac.UpdateRoleInput{Name: pointer.To("Editor")})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

// # Permissions

func TestService_PermissionEditing(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService()

	role, err := service.Create(ctx, rbac.CreateRoleInput{Name: "editor", Level: 4})
	require.NoError(t, err)

	role, err = service.AddPermission(ctx, role.ID, access.ResourcePosts, access.ActionRead)
	require.NoError(t, err)
	role, err = service.AddPermission(ctx, role.ID, access.ResourcePosts, access.ActionRead)
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, []access.Action{access.ActionRead}, role.Permissions[0].Actions)

	stored, err := service.Get(ctx, role.ID)
	require.NoError(t, err)
	assert.True(t, stored.Can(access.ResourcePosts, access.ActionRead))

	role, err = service.RemovePermission(ctx, role.ID, access.ResourcePosts, access.ActionRead)
	require.NoError(t, err)
	assert.Empty(t, role.Permissions)
	assert.False(t, role.Can(access.ResourcePosts, access.ActionRead))

	t.Run("add_requires_actions", func(t *testing.T) {
		_, err := service.AddPermission(ctx, role.ID, access.ResourcePosts)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("unknown_resource", func(t *testing.T) {
		_, err := service.AddPermission(ctx, role.ID, "spaceships", access.ActionRead)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("missing_role", func(t *testing.T) {
		_, err := service.AddPermission(ctx, "nope", access.ResourcePosts, access.ActionRead)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

// # Bootstrap

func TestService_Bootstrap_Idempotent(t *testing.T) {
	ctx := context.Background()
	service, roles, _ := newService()

	report, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Created, 5)
	assert.Empty(t, report.Updated)

	// Drift a system role's permissions, then re-run
	user, err := service.GetByName(ctx, "user")
	require.NoError(t, err)
	require.NoError(t, roles.UpdatePermissions(ctx, user.ID, nil))

	report, err = service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Len(t, report.Updated, 5)

	user, err = service.GetByName(ctx, "user")
	require.NoError(t, err)
	assert.NotEmpty(t, user.Permissions)
	assert.Equal(t, 3, user.Level)

	all, err := service.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "superadmin", all[0].Name)
	assert.Equal(t, "guest", all[4].Name)

	superadmin := all[0]
	for _, resource := range access.Resources() {
		for _, action := range access.Actions() {
			assert.True(t, superadmin.Can(resource, action))
		}
	}
}

func TestService_Bootstrap_SkipsNonSystemNameClash(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService()

	custom, err := service.Create(ctx, rbac.CreateRoleInput{Name: "moderator", Level: 2})
	require.NoError(t, err)

	report, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"moderator"}, report.Skipped)
	assert.Len(t, report.Created, 4)

	stored, err := service.Get(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Level)
	assert.False(t, stored.IsSystem)
}

// # Stats & Members

func TestService_StatsRecomputesCounts(t *testing.T) {
	ctx := context.Background()
	service, roles, members := newService()

	_, err := service.Bootstrap(ctx)
	require.NoError(t, err)
	user, err := service.GetByName(ctx, "user")
	require.NoError(t, err)

	members.assign(user.ID, rbac.Member{ID: "u1"})
	members.assign(user.ID, rbac.Member{ID: "u2"})

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalRoles)
	assert.Equal(t, 5, stats.SystemRoles)
	assert.Equal(t, 2, stats.TotalUsers)

	stored, err := roles.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UserCount)

	members.assign(user.ID, rbac.Member{ID: "u3"})
	require.NoError(t, service.RecountUsers(ctx, user.ID, "", "missing"))
	stored, err = roles.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UserCount)
}

func TestService_Members(t *testing.T) {
	ctx := context.Background()
	service, _, members := newService()

	role, err := service.Create(ctx, rbac.CreateRoleInput{Name: "editor", Level: 4})
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		members.assign(role.ID, rbac.Member{ID: id})
	}

	page, total, err := service.Members(ctx, role.ID, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	_, _, err = service.Members(ctx, "missing", pagination.Params{Page: 1, Limit: 2})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

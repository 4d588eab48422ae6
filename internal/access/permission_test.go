// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/warden/internal/access"
)

/*
TestHasPermission_ManageWildcard verifies that manage grants every action,
including ones never added explicitly.
*/
func TestHasPermission_ManageWildcard(t *testing.T) {
	for _, resource := range access.Resources() {
		permissions := []access.Permission{access.Grant(resource, access.ActionManage)}

		for _, action := range access.Actions() {
			assert.True(t, access.HasPermission(permissions, resource, action), "%s:%s", resource, action)
		}

		// Other resources stay closed
		for _, other := range access.Resources() {
			if other == resource {
				continue
			}
			assert.False(t, access.HasPermission(permissions, other, access.ActionRead))
		}
	}
}

/*
TestHasPermission_Explicit covers explicit grants and missing entries.
*/
func TestHasPermission_Explicit(t *testing.T) {
	permissions := []access.Permission{
		access.Grant(access.ResourcePosts, access.ActionCreate, access.ActionRead, access.ActionUpdate),
	}

	tests := []struct {
		name     string
		resource access.Resource
		action   access.Action
		want     bool
	}{
		{"granted_create", access.ResourcePosts, access.ActionCreate, true},
		{"granted_update", access.ResourcePosts, access.ActionUpdate, true},
		{"missing_action", access.ResourcePosts, access.ActionDelete, false},
		{"missing_manage", access.ResourcePosts, access.ActionManage, false},
		{"missing_resource", access.ResourceComments, access.ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, access.HasPermission(permissions, tt.resource, tt.action))
		})
	}

	assert.False(t, access.HasPermission(nil, access.ResourcePosts, access.ActionRead))
}

/*
TestAddPermission_Idempotent verifies that re-adding actions is a no-op.
*/
func TestAddPermission_Idempotent(t *testing.T) {
	permissions := access.AddPermission(nil, access.ResourceFiles, access.ActionRead)
	permissions = access.AddPermission(permissions, access.ResourceFiles, access.ActionRead, access.ActionCreate)
	permissions = access.AddPermission(permissions, access.ResourceFiles, access.ActionRead)

	require.Len(t, permissions, 1)
	assert.Equal(t, []access.Action{access.ActionRead, access.ActionCreate}, permissions[0].Actions)

	// Empty add leaves no dangling entry
	permissions = access.AddPermission(permissions, access.ResourceLogs)
	assert.Len(t, permissions, 1)
}

/*
TestAddPermission_DoesNotMutateInput guards the copy-on-write contract.
*/
func TestAddPermission_DoesNotMutateInput(t *testing.T) {
	original := []access.Permission{access.Grant(access.ResourcePosts, access.ActionRead)}

	_ = access.AddPermission(original, access.ResourcePosts, access.ActionUpdate)
	_ = access.RemovePermission(original, access.ResourcePosts, access.ActionRead)

	assert.Equal(t, []access.Action{access.ActionRead}, original[0].Actions)
}

/*
TestRemovePermission_CollapsesEntry verifies that removing the only action
deletes the resource entry entirely.
*/
func TestRemovePermission_CollapsesEntry(t *testing.T) {
	permissions := []access.Permission{
		access.Grant(access.ResourceReports, access.ActionRead),
		access.Grant(access.ResourcePosts, access.ActionRead, access.ActionUpdate),
	}

	permissions = access.RemovePermission(permissions, access.ResourceReports, access.ActionRead)
	require.Len(t, permissions, 1)
	assert.Equal(t, access.ResourcePosts, permissions[0].Resource)

	for _, action := range access.Actions() {
		assert.False(t, access.HasPermission(permissions, access.ResourceReports, action))
	}

	// Partial removal keeps the entry
	permissions = access.RemovePermission(permissions, access.ResourcePosts, access.ActionUpdate)
	require.Len(t, permissions, 1)
	assert.Equal(t, []access.Action{access.ActionRead}, permissions[0].Actions)

	// Removing again is a no-op
	again := access.RemovePermission(permissions, access.ResourcePosts, access.ActionUpdate)
	assert.Equal(t, permissions, again)

	// No actions drops the whole entry
	assert.Empty(t, access.RemovePermission(permissions, access.ResourcePosts))
}

/*
TestNormalize merges duplicates and rejects values outside the enums.
*/
func TestNormalize(t *testing.T) {
	normalized, err := access.Normalize([]access.Permission{
		access.Grant(access.ResourcePosts, access.ActionRead),
		access.Grant(access.ResourcePosts, access.ActionRead, access.ActionUpdate),
		access.Grant(access.ResourceFiles, access.ActionCreate),
	})
	require.NoError(t, err)
	assert.Equal(t, []access.Permission{
		access.Grant(access.ResourcePosts, access.ActionRead, access.ActionUpdate),
		access.Grant(access.ResourceFiles, access.ActionCreate),
	}, normalized)

	_, err = access.Normalize([]access.Permission{access.Grant("widgets", access.ActionRead)})
	assert.Error(t, err)

	_, err = access.Normalize([]access.Permission{access.Grant(access.ResourcePosts, "publish")})
	assert.Error(t, err)

	empty, err := access.Normalize(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

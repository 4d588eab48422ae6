// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package rbac manages roles: named permission sets ordered by a numeric level.

Architecture:

  - Role: The persisted entity. Permission lookups go through package access.
  - Repository: Storage contract with a Postgres implementation and an LRU-cached decorator.
  - Service: Business rules (system role protection, reference counting, bootstrap).
  - Handler: The /roles HTTP surface.

Five canonical system roles are created by [Service.Bootstrap]. They cannot be
renamed, and only a forced delete can remove them.
*/
package rbac

import (
	"time"

	"github.com/taibuivan/warden/internal/access"
)

// # Level Bounds

const (
	MinLevel = 1
	MaxLevel = 10
)

// # Domain Entities

// Role is a named, levelled permission set.
type Role struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name"`
	Description string              `json:"description"`
	Permissions []access.Permission `json:"permissions"`
	Level       int                 `json:"level"`
	IsActive    bool                `json:"is_active"`
	IsSystem    bool                `json:"is_system"`

	// UserCount is denormalized; Service.Stats recomputes it.
	UserCount int `json:"user_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Can reports whether the role grants action on resource.
func (r *Role) Can(resource access.Resource, action access.Action) bool {
	return access.HasPermission(r.Permissions, resource, action)
}

// Member is the slice of a user account that role listings expose.
type Member struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleStat is one row of [Service.Stats].
type RoleStat struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Level           int    `json:"level"`
	IsSystem        bool   `json:"is_system"`
	IsActive        bool   `json:"is_active"`
	UserCount       int    `json:"user_count"`
	PermissionCount int    `json:"permission_count"`
}

// Stats aggregates role usage across the directory.
type Stats struct {
	TotalRoles  int        `json:"total_roles"`
	ActiveRoles int        `json:"active_roles"`
	SystemRoles int        `json:"system_roles"`
	TotalUsers  int        `json:"total_users"`
	Roles       []RoleStat `json:"roles"`
}

// # Canonical Roles

// CanonicalRole is the bootstrap definition of a system role.
type CanonicalRole struct {
	Name        string
	DisplayName string
	Description string
	Level       int
	Permissions []access.Permission
}

// manageAll grants manage on every resource.
func manageAll() []access.Permission {
	permissions := make([]access.Permission, 0, len(access.Resources()))
	for _, resource := range access.Resources() {
		permissions = append(permissions, access.Grant(resource, access.ActionManage))
	}
	return permissions
}

// CanonicalRoles returns the system roles created by bootstrap, highest level first.
func CanonicalRoles() []CanonicalRole {
	return []CanonicalRole{
		{
			Name:        "superadmin",
			DisplayName: "Super Administrator",
			Description: "Unrestricted access to every resource",
			Level:       10,
			Permissions: manageAll(),
		},
		{
			Name:        "admin",
			DisplayName: "Administrator",
			Description: "Manages users and content, reads operational data",
			Level:       8,
			Permissions: []access.Permission{
				access.Grant(access.ResourceUsers, access.ActionManage),
				access.Grant(access.ResourceRoles, access.ActionRead),
				access.Grant(access.ResourcePosts, access.ActionManage),
				access.Grant(access.ResourceComments, access.ActionManage),
				access.Grant(access.ResourceSettings, access.ActionRead, access.ActionUpdate),
				access.Grant(access.ResourceAnalytics, access.ActionRead),
				access.Grant(access.ResourceReports, access.ActionRead, access.ActionUpdate),
				access.Grant(access.ResourceFiles, access.ActionManage),
				access.Grant(access.ResourceNotifications, access.ActionManage),
				access.Grant(access.ResourceLogs, access.ActionRead),
			},
		},
		{
			Name:        "moderator",
			DisplayName: "Moderator",
			Description: "Moderates community content and handles reports",
			Level:       5,
			Permissions: []access.Permission{
				access.Grant(access.ResourceUsers, access.ActionRead),
				access.Grant(access.ResourcePosts, access.ActionRead, access.ActionUpdate, access.ActionDelete),
				access.Grant(access.ResourceComments, access.ActionRead, access.ActionUpdate, access.ActionDelete),
				access.Grant(access.ResourceReports, access.ActionCreate, access.ActionRead, access.ActionUpdate),
				access.Grant(access.ResourceFiles, access.ActionRead),
			},
		},
		{
			Name:        "user",
			DisplayName: "User",
			Description: "Default role for registered accounts",
			Level:       3,
			Permissions: []access.Permission{
				access.Grant(access.ResourcePosts, access.ActionCreate, access.ActionRead, access.ActionUpdate),
				access.Grant(access.ResourceComments, access.ActionCreate, access.ActionRead, access.ActionUpdate),
				access.Grant(access.ResourceFiles, access.ActionCreate, access.ActionRead),
				access.Grant(access.ResourceReports, access.ActionCreate),
				access.Grant(access.ResourceNotifications, access.ActionRead),
			},
		},
		{
			Name:        "guest",
			DisplayName: "Guest",
			Description: "Read-only access to public content",
			Level:       1,
			Permissions: []access.Permission{
				access.Grant(access.ResourcePosts, access.ActionRead),
				access.Grant(access.ResourceComments, access.ActionRead),
			},
		},
	}
}

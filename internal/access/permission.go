// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access holds the permission model and the composable authorization
checks evaluated against an authenticated [Principal].

It is a leaf package: no I/O, no storage, no HTTP. Roles persist their grants as
plain [Permission] slices and every lookup goes through the free functions here.

Grant semantics:

  - A role holds at most one [Permission] entry per [Resource].
  - [ActionManage] on a resource implies every other action on it.
  - Removing the last action of an entry removes the entry itself.
*/
package access

import (
	"fmt"
	"slices"
)

// # Resources & Actions

// Resource is a protected object family. The set is closed.
type Resource string

const (
	ResourceUsers         Resource = "users"
	ResourceRoles         Resource = "roles"
	ResourcePosts         Resource = "posts"
	ResourceComments      Resource = "comments"
	ResourceSettings      Resource = "settings"
	ResourceAnalytics     Resource = "analytics"
	ResourceReports       Resource = "reports"
	ResourceFiles         Resource = "files"
	ResourceNotifications Resource = "notifications"
	ResourceLogs          Resource = "logs"
)

var allResources = []Resource{
	ResourceUsers, ResourceRoles, ResourcePosts, ResourceComments, ResourceSettings,
	ResourceAnalytics, ResourceReports, ResourceFiles, ResourceNotifications, ResourceLogs,
}

// Resources returns every known resource in canonical order.
func Resources() []Resource { return slices.Clone(allResources) }

// Valid reports whether r belongs to the closed resource set.
func (r Resource) Valid() bool { return slices.Contains(allResources, r) }

// Action is an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionManage is the wildcard: it grants every other action.
	ActionManage Action = "manage"
)

var allActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}

// Actions returns every known action in canonical order.
func Actions() []Action { return slices.Clone(allActions) }

// Valid reports whether a belongs to the closed action set.
func (a Action) Valid() bool { return slices.Contains(allActions, a) }

// Permission grants a set of actions on one resource.
type Permission struct {
	Resource Resource `json:"resource"`
	Actions  []Action `json:"actions"`
}

// # Lookup

// HasPermission reports whether permissions grant action on resource, either
// explicitly or through [ActionManage].
func HasPermission(permissions []Permission, resource Resource, action Action) bool {
	for _, permission := range permissions {
		if permission.Resource != resource {
			continue
		}
		return slices.Contains(permission.Actions, action) || slices.Contains(permission.Actions, ActionManage)
	}
	return false
}

// # Mutation

// AddPermission returns a copy of permissions with actions granted on resource.
// Actions already present are left as they are.
func AddPermission(permissions []Permission, resource Resource, actions ...Action) []Permission {
	result := Clone(permissions)

	index := slices.IndexFunc(result, func(p Permission) bool { return p.Resource == resource })
	if index < 0 {
		result = append(result, Permission{Resource: resource})
		index = len(result) - 1
	}

	for _, action := range actions {
		if !slices.Contains(result[index].Actions, action) {
			result[index].Actions = append(result[index].Actions, action)
		}
	}

	// An Add with no actions must not leave an empty entry behind
	if len(result[index].Actions) == 0 {
		result = slices.Delete(result, index, index+1)
	}
	return result
}

// RemovePermission returns a copy of permissions with actions revoked on resource.
// Calling it with no actions drops the whole entry. An entry left without
// actions is removed.
func RemovePermission(permissions []Permission, resource Resource, actions ...Action) []Permission {
	result := Clone(permissions)

	index := slices.IndexFunc(result, func(p Permission) bool { return p.Resource == resource })
	if index < 0 {
		return result
	}

	if len(actions) > 0 {
		result[index].Actions = slices.DeleteFunc(result[index].Actions, func(a Action) bool {
			return slices.Contains(actions, a)
		})
	}

	if len(actions) == 0 || len(result[index].Actions) == 0 {
		result = slices.Delete(result, index, index+1)
	}
	return result
}

// Normalize validates permissions against the closed enums and merges
// duplicate resource entries, keeping first-seen order.
func Normalize(permissions []Permission) ([]Permission, error) {
	var result []Permission
	for _, permission := range permissions {
		if !permission.Resource.Valid() {
			return nil, fmt.Errorf("unknown resource %q", permission.Resource)
		}
		for _, action := range permission.Actions {
			if !action.Valid() {
				return nil, fmt.Errorf("unknown action %q on resource %q", action, permission.Resource)
			}
		}
		result = AddPermission(result, permission.Resource, permission.Actions...)
	}
	if result == nil {
		result = []Permission{}
	}
	return result, nil
}

// Grant is shorthand for building a [Permission] literal.
func Grant(resource Resource, actions ...Action) Permission {
	return Permission{Resource: resource, Actions: actions}
}

// Clone returns a deep copy of permissions.
func Clone(permissions []Permission) []Permission {
	result := make([]Permission, 0, len(permissions)+1)
	for _, permission := range permissions {
		result = append(result, Permission{
			Resource: permission.Resource,
			Actions:  slices.Clone(permission.Actions),
		})
	}
	return result
}

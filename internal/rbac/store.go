// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"context"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/pkg/pagination"
)

// # Role Data Access

// Repository defines the data access contract for roles.
//
// Lookups by name are case-insensitive. Missing rows surface as apperr NotFound,
// duplicate names as apperr Conflict.
type Repository interface {

	/*
		Create persists a brand-new role.

		Parameters:
		  - context: context.Context
		  - role: *Role

		Returns:
		  - error: Conflict on duplicate name, persistence failures
	*/
	Create(context context.Context, role *Role) error

	// FindByID returns the role with the given ID.
	FindByID(context context.Context, id string) (*Role, error)

	// FindByName returns the role with the given name, ignoring case.
	FindByName(context context.Context, name string) (*Role, error)

	/*
		List returns roles sorted by level, highest first.

		Parameters:
		  - context: context.Context
		  - activeOnly: bool (skip roles with isActive = false)

		Returns:
		  - []*Role: Possibly empty slice
		  - error: Database retrieval failures
	*/
	List(context context.Context, activeOnly bool) ([]*Role, error)

	// Update persists display name, description, level, active flag and name.
	Update(context context.Context, role *Role) error

	// UpdatePermissions replaces the permission list of a role.
	UpdatePermissions(context context.Context, id string, permissions []access.Permission) error

	// SetUserCount overwrites the denormalized user counter.
	SetUserCount(context context.Context, id string, count int) error

	// Delete removes a role permanently.
	Delete(context context.Context, id string) error
}

// # Member Directory

// MemberDirectory exposes the account side of the role relationship.
// It is implemented by the account store.
type MemberDirectory interface {

	// CountByRole returns how many accounts reference the role.
	CountByRole(context context.Context, roleID string) (int, error)

	// CountAllByRole returns account counts keyed by role ID.
	CountAllByRole(context context.Context) (map[string]int, error)

	/*
		ListByRole returns one page of accounts holding the role.

		Parameters:
		  - context: context.Context
		  - roleID: string
		  - page: pagination.Params

		Returns:
		  - []Member: The page
		  - int: Total matching accounts
		  - error: Database retrieval failures
	*/
	ListByRole(context context.Context, roleID string, page pagination.Params) ([]Member, int, error)
}

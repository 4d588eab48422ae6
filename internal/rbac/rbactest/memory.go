// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package rbactest provides an in-memory role store for tests.
package rbactest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/rbac"
)

// Roles is an in-memory [rbac.Repository] for tests.
type Roles struct {
	mu        sync.Mutex
	roles     map[string]*rbac.Role
	findCalls int
}

// NewRoles returns an empty store.
func NewRoles() *Roles {
	return &Roles{roles: make(map[string]*rbac.Role)}
}

func copyRole(role *rbac.Role) *rbac.Role {
	clone := *role
	clone.Permissions = access.Clone(role.Permissions)
	return &clone
}

func (store *Roles) Create(_ context.Context, role *rbac.Role) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return apperr.Conflict("Role already exists")
		}
	}
	store.roles[role.ID] = copyRole(role)
	return nil
}

func (store *Roles) FindByID(_ context.Context, id string) (*rbac.Role, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.findCalls++
	role, ok := store.roles[id]
	if !ok {
		return nil, apperr.NotFound("Role")
	}
	return copyRole(role), nil
}

func (store *Roles) FindByName(_ context.Context, name string) (*rbac.Role, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, role := range store.roles {
		if strings.EqualFold(role.Name, name) {
			return copyRole(role), nil
		}
	}
	return nil, apperr.NotFound("Role")
}

func (store *Roles) List(_ context.Context, activeOnly bool) ([]*rbac.Role, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var roles []*rbac.Role
	for _, role := range store.roles {
		if activeOnly && !role.IsActive {
			continue
		}
		roles = append(roles, copyRole(role))
	}
	slices.SortFunc(roles, func(a, b *rbac.Role) int { return b.Level - a.Level })
	return roles, nil
}

func (store *Roles) Update(_ context.Context, role *rbac.Role) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.roles[role.ID]; !ok {
		return apperr.NotFound("Role")
	}
	store.roles[role.ID] = copyRole(role)
	return nil
}

func (store *Roles) UpdatePermissions(_ context.Context, id string, permissions []access.Permission) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	role, ok := store.roles[id]
	if !ok {
		return apperr.NotFound("Role")
	}
	role.Permissions = access.Clone(permissions)
	return nil
}

func (store *Roles) SetUserCount(_ context.Context, id string, count int) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	role, ok := store.roles[id]
	if !ok {
		return apperr.NotFound("Role")
	}
	role.UserCount = count
	return nil
}

func (store *Roles) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.roles[id]; !ok {
		return apperr.NotFound("Role")
	}
	delete(store.roles, id)
	return nil
}

// FindCalls reports how many times FindByID reached the store.
func (store *Roles) FindCalls() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.findCalls
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/taibuivan/warden/internal/access"
)

// CachedRepository decorates a [Repository] with a short-lived LRU keyed by role ID.
//
// The authorization gate resolves a role on every request, so reads by ID are
// served from memory for at most ttl. Writes through this decorator evict the
// entry immediately. Writes made by other replicas become visible after ttl.
type CachedRepository struct {
	Repository
	byID *expirable.LRU[string, *Role]
}

// NewCachedRepository wraps next with an LRU of the given size and ttl.
func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: next,
		byID:       expirable.NewLRU[string, *Role](size, nil, ttl),
	}
}

// FindByID serves from the cache when possible.
func (repository *CachedRepository) FindByID(context context.Context, id string) (*Role, error) {
	if role, ok := repository.byID.Get(id); ok {
		return cloneRole(role), nil
	}

	role, err := repository.Repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	repository.byID.Add(id, cloneRole(role))
	return role, nil
}

// Update evicts the role after writing through.
func (repository *CachedRepository) Update(context context.Context, role *Role) error {
	defer repository.byID.Remove(role.ID)
	return repository.Repository.Update(context, role)
}

// UpdatePermissions evicts the role after writing through.
func (repository *CachedRepository) UpdatePermissions(context context.Context, id string, permissions []access.Permission) error {
	defer repository.byID.Remove(id)
	return repository.Repository.UpdatePermissions(context, id, permissions)
}

// SetUserCount evicts the role after writing through.
func (repository *CachedRepository) SetUserCount(context context.Context, id string, count int) error {
	defer repository.byID.Remove(id)
	return repository.Repository.SetUserCount(context, id, count)
}

// Delete evicts the role after writing through.
func (repository *CachedRepository) Delete(context context.Context, id string) error {
	defer repository.byID.Remove(id)
	return repository.Repository.Delete(context, id)
}

// Purge drops every cached entry.
func (repository *CachedRepository) Purge() {
	repository.byID.Purge()
}

// cloneRole keeps callers from mutating the cached value.
func cloneRole(role *Role) *Role {
	clone := *role
	clone.Permissions = access.Clone(role.Permissions)
	return &clone
}

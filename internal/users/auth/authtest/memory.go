// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package authtest provides in-memory credential and OAuth link stores for tests.
package authtest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/pkg/pagination"
)

// # Users

// Users is an in-memory [auth.UserRepository].
type Users struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{users: make(map[string]*auth.User)}
}

func copyUser(user *auth.User) *auth.User {
	clone := *user
	clone.Role = nil
	clone.LinkedProviders = slices.Clone(user.LinkedProviders)
	return &clone
}

func (store *Users) find(match func(*auth.User) bool) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.users {
		if match(user) {
			return copyUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *Users) update(id string, apply func(*auth.User)) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	apply(user)
	return nil
}

func (store *Users) FindByID(_ context.Context, id string) (*auth.User, error) {
	return store.find(func(user *auth.User) bool { return user.ID == id })
}

func (store *Users) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return store.find(func(user *auth.User) bool { return strings.EqualFold(user.Email, email) })
}

func (store *Users) FindByVerificationHash(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	return store.find(func(user *auth.User) bool {
		return user.VerificationTokenHash != nil && *user.VerificationTokenHash == tokenHash &&
			user.VerificationExpiresAt != nil && user.VerificationExpiresAt.After(now)
	})
}

func (store *Users) FindByResetHash(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	return store.find(func(user *auth.User) bool {
		return user.ResetTokenHash != nil && *user.ResetTokenHash == tokenHash &&
			user.ResetExpiresAt != nil && user.ResetExpiresAt.After(now)
	})
}

func (store *Users) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return apperr.Conflict("User already exists")
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	store.users[user.ID] = copyUser(user)
	return nil
}

func (store *Users) UpdateProfile(_ context.Context, user *auth.User) error {
	return store.update(user.ID, func(stored *auth.User) {
		stored.FirstName, stored.LastName, stored.Preferences = user.FirstName, user.LastName, user.Preferences
	})
}

func (store *Users) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	return store.update(id, func(user *auth.User) {
		user.PasswordHash = &passwordHash
		user.PasswordChangedAt = &changedAt
		user.ResetTokenHash, user.ResetExpiresAt = nil, nil
	})
}

func (store *Users) RecordLoginFailure(_ context.Context, id string, policy auth.LockoutPolicy, now time.Time) (auth.LockState, error) {
	var state auth.LockState
	err := store.update(id, func(user *auth.User) {
		state = policy.NextFailure(user.LockState(), now)
		user.LoginAttempts, user.IsLocked, user.LockUntil = state.Attempts, state.IsLocked, state.LockUntil
	})
	return state, err
}

func (store *Users) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return store.update(id, func(user *auth.User) {
		user.LoginAttempts, user.IsLocked, user.LockUntil = 0, false, nil
		user.LastLoginAt = &at
	})
}

func (store *Users) ClearLock(_ context.Context, id string) error {
	return store.update(id, func(user *auth.User) {
		user.LoginAttempts, user.IsLocked, user.LockUntil = 0, false, nil
	})
}

func (store *Users) SetVerificationToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return store.update(id, func(user *auth.User) {
		user.VerificationTokenHash, user.VerificationExpiresAt = &tokenHash, &expiresAt
	})
}

func (store *Users) MarkVerified(_ context.Context, id string) error {
	return store.update(id, func(user *auth.User) {
		user.IsVerified = true
		user.VerificationTokenHash, user.VerificationExpiresAt = nil, nil
	})
}

func (store *Users) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return store.update(id, func(user *auth.User) {
		user.ResetTokenHash, user.ResetExpiresAt = &tokenHash, &expiresAt
	})
}

func (store *Users) SetRole(_ context.Context, id, roleID string) error {
	return store.update(id, func(user *auth.User) { user.RoleID = roleID })
}

func (store *Users) SetActive(_ context.Context, id string, active bool) error {
	return store.update(id, func(user *auth.User) { user.IsActive = active })
}

func (store *Users) AddLinkedProvider(_ context.Context, id string, provider auth.Provider) error {
	return store.update(id, func(user *auth.User) {
		if !slices.Contains(user.LinkedProviders, provider) {
			user.LinkedProviders = append(user.LinkedProviders, provider)
		}
	})
}

func (store *Users) RemoveLinkedProvider(_ context.Context, id string, provider auth.Provider) error {
	return store.update(id, func(user *auth.User) {
		user.LinkedProviders = slices.DeleteFunc(user.LinkedProviders, func(p auth.Provider) bool { return p == provider })
	})
}

func (store *Users) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.users[id]; !ok {
		return apperr.NotFound("User")
	}
	delete(store.users, id)
	return nil
}

// Put stores user as-is, bypassing Create. Tests use it to seed odd states.
func (store *Users) Put(user *auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.users[user.ID] = copyUser(user)
}

// # Member Directory

func (store *Users) CountByRole(_ context.Context, roleID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	count := 0
	for _, user := range store.users {
		if user.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (store *Users) CountAllByRole(context.Context) (map[string]int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	counts := make(map[string]int)
	for _, user := range store.users {
		counts[user.RoleID]++
	}
	return counts, nil
}

func (store *Users) ListByRole(_ context.Context, roleID string, page pagination.Params) ([]rbac.Member, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	members := []rbac.Member{}
	for _, user := range store.users {
		if user.RoleID == roleID {
			members = append(members, rbac.Member{
				ID:        user.ID,
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				IsActive:  user.IsActive,
				CreatedAt: user.CreatedAt,
			})
		}
	}
	slices.SortFunc(members, func(a, b rbac.Member) int { return strings.Compare(a.Email, b.Email) })

	start := min(page.Offset(), len(members))
	end := min(start+page.Limit, len(members))
	return members[start:end], len(members), nil
}

// # OAuth Links

// Links is an in-memory [auth.OAuthLinkRepository].
type Links struct {
	mu    sync.Mutex
	links []*auth.OAuthLink
}

// NewLinks returns an empty store.
func NewLinks() *Links {
	return &Links{}
}

func (store *Links) Upsert(_ context.Context, link *auth.OAuthLink) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := time.Now()
	for _, existing := range store.links {
		if existing.UserID == link.UserID && existing.Provider == link.Provider {
			link.ID, link.CreatedAt = existing.ID, existing.CreatedAt
			link.IsActive, link.UpdatedAt = true, now
			*existing = *link
			return nil
		}
	}
	link.IsActive, link.CreatedAt, link.UpdatedAt = true, now, now
	clone := *link
	store.links = append(store.links, &clone)
	return nil
}

func (store *Links) FindByProviderID(_ context.Context, provider auth.Provider, providerID string) (*auth.OAuthLink, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, link := range store.links {
		if link.IsActive && link.Provider == provider && link.ProviderID == providerID {
			clone := *link
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("OAuth link")
}

func (store *Links) ListByUser(_ context.Context, userID string) ([]*auth.OAuthLink, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	links := []*auth.OAuthLink{}
	for _, link := range store.links {
		if link.IsActive && link.UserID == userID {
			clone := *link
			links = append(links, &clone)
		}
	}
	return links, nil
}

func (store *Links) Deactivate(_ context.Context, userID string, provider auth.Provider) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, link := range store.links {
		if link.IsActive && link.UserID == userID && link.Provider == provider {
			link.IsActive, link.AccessToken, link.RefreshToken = false, "", ""
			return nil
		}
	}
	return apperr.NotFound("OAuth link")
}

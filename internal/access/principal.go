// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"slices"
	"time"
)

// Principal is the resolved identity of an authenticated request.
//
// It is built by the authorization gate after the token, the account status,
// and the role have all been checked, and is read by route-level [Check]s.
type Principal struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	RoleID      string       `json:"role_id"`
	RoleName    string       `json:"role"`
	RoleLevel   int          `json:"level"`
	Permissions []Permission `json:"permissions"`
	IsVerified  bool         `json:"is_verified"`

	// TokenIssuedAt is the issue time, to the microsecond, of the access token that produced this principal.
	TokenIssuedAt time.Time `json:"-"`
}

// Can reports whether the principal's role grants action on resource.
func (p *Principal) Can(resource Resource, action Action) bool {
	if p == nil {
		return false
	}
	return HasPermission(p.Permissions, resource, action)
}

// HasRole reports whether the principal's role name is one of names.
func (p *Principal) HasRole(names ...string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(names, p.RoleName)
}

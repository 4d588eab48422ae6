// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"fmt"
	"strings"

	"github.com/taibuivan/warden/internal/platform/apperr"
)

// Request is what a [Check] may inspect: the principal plus, for ownership
// checks, the owner id of the targeted resource.
type Request struct {
	Principal *Principal
	OwnerID   string
}

// Check admits a request (nil) or rejects it with an [apperr.AppError].
type Check func(request Request) error

// Evaluate runs checks in order and returns the first rejection.
// A request without a principal is rejected as unauthenticated before any check runs.
func Evaluate(request Request, checks ...Check) error {
	if request.Principal == nil {
		return apperr.Unauthorized("Authentication required")
	}
	for _, check := range checks {
		if err := check(request); err != nil {
			return err
		}
	}
	return nil
}

// RequireRole admits principals whose role name is one of names.
//
// Names are only stable for system roles; prefer [RequireMinLevel] elsewhere.
func RequireRole(names ...string) Check {
	return func(request Request) error {
		if request.Principal.HasRole(names...) {
			return nil
		}
		return apperr.Forbidden("Insufficient role").
			With("required_roles", strings.Join(names, ","))
	}
}

// RequirePermission admits principals whose role grants action on resource.
func RequirePermission(resource Resource, action Action) Check {
	return func(request Request) error {
		if request.Principal.Can(resource, action) {
			return nil
		}
		return apperr.Forbidden("Insufficient permissions").
			With("required_permission", fmt.Sprintf("%s:%s", resource, action))
	}
}

// RequireAnyPermission admits principals holding at least one of the given actions on resource.
func RequireAnyPermission(resource Resource, actions ...Action) Check {
	return func(request Request) error {
		for _, action := range actions {
			if request.Principal.Can(resource, action) {
				return nil
			}
		}
		return apperr.Forbidden("Insufficient permissions").
			With("required_resource", string(resource))
	}
}

// RequireMinLevel admits principals whose role level is at least level.
func RequireMinLevel(level int) Check {
	return func(request Request) error {
		if request.Principal.RoleLevel >= level {
			return nil
		}
		return apperr.Forbidden("Insufficient role level").
			With("required_level", level)
	}
}

// RequireOwnerOrAdmin admits the owner of the targeted resource or any
// principal whose role is in adminRoles.
func RequireOwnerOrAdmin(adminRoles ...string) Check {
	return func(request Request) error {
		if request.OwnerID != "" && request.OwnerID == request.Principal.UserID {
			return nil
		}
		if request.Principal.HasRole(adminRoles...) {
			return nil
		}
		return apperr.Forbidden("You can only access your own resources")
	}
}

// RequireVerified admits principals with a verified email address.
func RequireVerified() Check {
	return func(request Request) error {
		if request.Principal.IsVerified {
			return nil
		}
		return apperr.Forbidden("Email address is not verified")
	}
}

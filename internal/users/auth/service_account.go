// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/pkg/pointer"
)

// # Profile

// Profile returns the user with its role.
func (service *Service) Profile(context context.Context, userID string) (*User, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}
	if err := service.hydrateRole(context, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput carries optional changes; nil fields are left alone.
type UpdateProfileInput struct {
	FirstName          *string
	LastName           *string
	Language           *string
	Timezone           *string
	EmailNotifications *bool
	PushNotifications  *bool
	MarketingEmails    *bool
}

/*
UpdateProfile applies name and preference changes.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *User: Updated user with its role
  - error: Validation, NotFound
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*User, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
		validator.Required(FieldFirstName, user.FirstName).MaxLen(FieldFirstName, user.FirstName, 100)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
		validator.MaxLen(FieldLastName, user.LastName, 100)
	}
	if input.Language != nil {
		user.Preferences.Language = *input.Language
		validator.Required(FieldLanguage, *input.Language).MaxLen(FieldLanguage, *input.Language, 10)
	}
	if input.Timezone != nil {
		_, loadErr := time.LoadLocation(*input.Timezone)
		validator.Custom(FieldTimezone, *input.Timezone == "" || loadErr != nil, "Must be an IANA time zone")
		user.Preferences.Timezone = *input.Timezone
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	preferences := &user.Preferences
	preferences.EmailNotifications = pointer.Or(input.EmailNotifications, preferences.EmailNotifications)
	preferences.PushNotifications = pointer.Or(input.PushNotifications, preferences.PushNotifications)
	preferences.MarketingEmails = pointer.Or(input.MarketingEmails, preferences.MarketingEmails)

	if err := service.users.UpdateProfile(context, user); err != nil {
		return nil, err
	}
	if err := service.hydrateRole(context, user); err != nil {
		return nil, err
	}
	return user, nil
}

// # Sessions

// ListSessions returns the user's active refresh-token sessions.
func (service *Service) ListSessions(context context.Context, userID string) ([]*token.Record, error) {
	return service.tokens.ListActive(context, userID)
}

// RevokeSession revokes one of the user's own sessions.
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	return service.tokens.RevokeSession(context, userID, sessionID)
}

// # Account Deletion

/*
DeleteAccount permanently removes the user.

Accounts with a password must confirm it. Sessions are revoked first, then
the row goes and its OAuth links with it.

Parameters:
  - context: context.Context
  - userID: string
  - password: string (ignored for password-less accounts)

Returns:
  - error: Unauthorized on a wrong password, NotFound
*/
func (service *Service) DeleteAccount(context context.Context, userID, password string) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() && !service.hasher.Verify(password, *user.PasswordHash) {
		return apperr.Unauthorized("Password is incorrect")
	}

	if err := service.revokeAll(context, user.ID, token.ReasonAccountDeleted); err != nil {
		return err
	}
	if err := service.users.Delete(context, user.ID); err != nil {
		return err
	}
	service.recount(context, user.RoleID)

	service.logger.InfoContext(context, "account_deleted", slog.String("user_id", user.ID))
	return nil
}

// # Administration

// GetUser returns any user with its role.
func (service *Service) GetUser(context context.Context, userID string) (*User, error) {
	return service.Profile(context, userID)
}

/*
AssignRole moves a user to another role and revokes their sessions so the
new permissions apply from the next sign-in.

An actor cannot grant a role above their own level.

Parameters:
  - context: context.Context
  - actor: *access.Principal
  - userID: string
  - roleID: string

Returns:
  - *User: Updated user with its new role
  - error: NotFound, Forbidden, Constraint for inactive roles
*/
func (service *Service) AssignRole(context context.Context, actor *access.Principal, userID, roleID string) (*User, error) {
	if roleID == "" {
		return nil, validate.RequiredError(FieldRoleID, "Role is required")
	}

	role, err := service.roles.Get(context, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return nil, apperr.Constraint("Role is inactive")
	}
	if actor == nil || actor.RoleLevel < role.Level {
		return nil, apperr.Forbidden("Cannot assign a role above your own level")
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	previous := user.RoleID
	if previous != role.ID {
		if err := service.users.SetRole(context, user.ID, role.ID); err != nil {
			return nil, err
		}
		if err := service.revokeAll(context, user.ID, token.ReasonRoleChanged); err != nil {
			return nil, err
		}
		service.recount(context, previous, role.ID)

		service.logger.InfoContext(context, "role_assigned",
			slog.String("user_id", user.ID),
			slog.String("role", role.Name),
			slog.String("actor_id", actor.UserID),
		)
	}

	user.RoleID, user.Role = role.ID, role
	return user, nil
}

// SetActive activates or deactivates a user. Deactivation revokes all sessions.
func (service *Service) SetActive(context context.Context, actor *access.Principal, userID string, active bool) error {
	if actor != nil && actor.UserID == userID && !active {
		return apperr.Constraint("You cannot deactivate your own account")
	}

	if err := service.users.SetActive(context, userID, active); err != nil {
		return err
	}
	if !active {
		if err := service.revokeAll(context, userID, token.ReasonDeactivated); err != nil {
			return err
		}
	}

	service.logger.InfoContext(context, "account_status_changed",
		slog.String("user_id", userID),
		slog.Bool("active", active),
	)
	return nil
}

// Unlock clears a lockout ahead of its expiry.
func (service *Service) Unlock(context context.Context, userID string) error {
	if err := service.users.ClearLock(context, userID); err != nil {
		return err
	}
	service.logger.InfoContext(context, "account_unlocked", slog.String("user_id", userID))
	return nil
}

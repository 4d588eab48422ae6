// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/pkg/pagination"
	"github.com/taibuivan/warden/pkg/uuid"
)

// Service implements the role management use cases.
type Service struct {
	repository Repository
	members    MemberDirectory
	logger     *slog.Logger
}

// NewService constructs a new [Service].
func NewService(repository Repository, members MemberDirectory, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		members:    members,
		logger:     logger,
	}
}

// # Inputs

// CreateRoleInput holds the data required to define a new role.
type CreateRoleInput struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name"`
	Description string              `json:"description"`
	Level       int                 `json:"level"`
	Permissions []access.Permission `json:"permissions"`
}

// UpdateRoleInput carries a partial update. Nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string `json:"name"`
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Level       *int    `json:"level"`
	IsActive    *bool   `json:"is_active"`
}

// # Queries

// Get returns the role with the given ID.
func (service *Service) Get(context context.Context, id string) (*Role, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound("Role")
	}
	return service.repository.FindByID(context, id)
}

// GetByName returns the role with the given name, ignoring case.
func (service *Service) GetByName(context context.Context, name string) (*Role, error) {
	return service.repository.FindByName(context, strings.ToLower(strings.TrimSpace(name)))
}

// List returns roles sorted by level descending.
func (service *Service) List(context context.Context, activeOnly bool) ([]*Role, error) {
	return service.repository.List(context, activeOnly)
}

/*
Members returns one page of the accounts holding a role.

Parameters:
  - context: context.Context
  - id: string (role ID)
  - page: pagination.Params

Returns:
  - []Member: The page
  - int: Total accounts holding the role
  - error: NotFound if the role does not exist
*/
func (service *Service) Members(context context.Context, id string, page pagination.Params) ([]Member, int, error) {
	if _, err := service.repository.FindByID(context, id); err != nil {
		return nil, 0, err
	}

	members, total, err := service.members.ListByRole(context, id, page)
	if err != nil {
		return nil, 0, fmt.Errorf("rbac_service_members_failed: %w", err)
	}
	return members, total, nil
}

// # Mutations

/*
Create validates and persists a new, non-system role.

Parameters:
  - context: context.Context
  - input: CreateRoleInput

Returns:
  - *Role: The persisted role
  - error: Validation, Conflict on duplicate name, storage errors
*/
func (service *Service) Create(context context.Context, input CreateRoleInput) (*Role, error) {
	name := strings.ToLower(strings.TrimSpace(input.Name))

	validator := &validate.Validator{}
	validator.
		Required("name", name).
		MaxLen("name", name, 50).
		RoleName("name", name).
		MaxLen("display_name", input.DisplayName, 100).
		MaxLen("description", input.Description, 500).
		Range("level", input.Level, MinLevel, MaxLevel)

	permissions, err := access.Normalize(input.Permissions)
	validator.Custom("permissions", err != nil, fmt.Sprint(err))

	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Case-insensitive uniqueness; the unique index backs this up under races
	if _, err := service.repository.FindByName(context, name); err == nil {
		return nil, apperr.Conflict(fmt.Sprintf("Role %q already exists", name))
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = titleCase(name)
	}

	role := &Role{
		ID:          uuid.New(),
		Name:        name,
		DisplayName: displayName,
		Description: strings.TrimSpace(input.Description),
		Permissions: permissions,
		Level:       input.Level,
		IsActive:    true,
		IsSystem:    false,
	}

	if err := service.repository.Create(context, role); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "role_created",
		slog.String("role_id", role.ID),
		slog.String("name", role.Name),
		slog.Int("level", role.Level),
	)
	return role, nil
}

/*
Update applies a partial update.

Renaming a system role is rejected with a Constraint error; every other field
of a system role remains editable.
*/
func (service *Service) Update(context context.Context, id string, input UpdateRoleInput) (*Role, error) {
	role, err := service.repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}

	if input.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*input.Name))
		if name != role.Name {
			if role.IsSystem {
				return nil, apperr.Constraint("System roles cannot be renamed")
			}
			validator.Required("name", name).MaxLen("name", name, 50).RoleName("name", name)

			if existing, err := service.repository.FindByName(context, name); err == nil && existing.ID != role.ID {
				return nil, apperr.Conflict(fmt.Sprintf("Role %q already exists", name))
			} else if err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
			role.Name = name
		}
	}
	if input.DisplayName != nil {
		validator.Required("display_name", *input.DisplayName).MaxLen("display_name", *input.DisplayName, 100)
		role.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Description != nil {
		validator.MaxLen("description", *input.Description, 500)
		role.Description = strings.TrimSpace(*input.Description)
	}
	if input.Level != nil {
		validator.Range("level", *input.Level, MinLevel, MaxLevel)
		role.Level = *input.Level
	}
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}

	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := service.repository.Update(context, role); err != nil {
		return nil, err
	}
	return role, nil
}

/*
Delete removes a role that no account references.

Parameters:
  - context: context.Context
  - id: string
  - force: bool (allow deleting a system role; logged as an anomaly)

Returns:
  - error: Constraint if the role is a system role without force, or still assigned
*/
func (service *Service) Delete(context context.Context, id string, force bool) error {
	role, err := service.repository.FindByID(context, id)
	if err != nil {
		return err
	}

	if role.IsSystem && !force {
		return apperr.Constraint("System roles cannot be deleted")
	}

	// Count references first; the foreign key only catches what slips through
	count, err := service.members.CountByRole(context, id)
	if err != nil {
		return fmt.Errorf("rbac_service_count_members_failed: %w", err)
	}
	if count > 0 {
		return apperr.Constraint(fmt.Sprintf("Role is assigned to %d user(s)", count)).With("user_count", count)
	}

	if role.IsSystem {
		service.logger.WarnContext(context, "role_force_deleted",
			slog.String("role_id", role.ID),
			slog.String("name", role.Name),
		)
	}

	if err := service.repository.Delete(context, id); err != nil {
		return err
	}

	service.logger.InfoContext(context, "role_deleted", slog.String("role_id", id))
	return nil
}

// # Permission Editing

// AddPermission grants actions on resource to the role. Re-granting is a no-op.
func (service *Service) AddPermission(context context.Context, id string, resource access.Resource, actions ...access.Action) (*Role, error) {
	if len(actions) == 0 {
		return nil, validate.RequiredError("actions", "At least one action is required")
	}
	return service.editPermissions(context, id, resource, actions, access.AddPermission)
}

// RemovePermission revokes actions on resource. With no actions the whole entry goes.
func (service *Service) RemovePermission(context context.Context, id string, resource access.Resource, actions ...access.Action) (*Role, error) {
	return service.editPermissions(context, id, resource, actions, access.RemovePermission)
}

type permissionEdit func([]access.Permission, access.Resource, ...access.Action) []access.Permission

func (service *Service) editPermissions(context context.Context, id string, resource access.Resource, actions []access.Action, edit permissionEdit) (*Role, error) {
	if _, err := access.Normalize([]access.Permission{access.Grant(resource, actions...)}); err != nil {
		return nil, apperr.ValidationError("Invalid permission", apperr.FieldError{Field: "permission", Message: err.Error()})
	}

	role, err := service.repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	role.Permissions = edit(role.Permissions, resource, actions...)

	if err := service.repository.UpdatePermissions(context, id, role.Permissions); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "role_permissions_changed",
		slog.String("role_id", id),
		slog.String("resource", string(resource)),
	)
	return role, nil
}

// # Statistics

// Stats recomputes per-role user counts from the account store, writes them
// back to the denormalized counters, and returns the aggregate.
func (service *Service) Stats(context context.Context) (*Stats, error) {
	roles, err := service.repository.List(context, false)
	if err != nil {
		return nil, err
	}

	counts, err := service.members.CountAllByRole(context)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_count_all_failed: %w", err)
	}

	stats := &Stats{Roles: make([]RoleStat, 0, len(roles))}
	for _, role := range roles {
		count := counts[role.ID]
		if count != role.UserCount {
			if err := service.repository.SetUserCount(context, role.ID, count); err != nil {
				return nil, err
			}
		}

		stats.TotalRoles++
		stats.TotalUsers += count
		if role.IsActive {
			stats.ActiveRoles++
		}
		if role.IsSystem {
			stats.SystemRoles++
		}

		stats.Roles = append(stats.Roles, RoleStat{
			ID:              role.ID,
			Name:            role.Name,
			Level:           role.Level,
			IsSystem:        role.IsSystem,
			IsActive:        role.IsActive,
			UserCount:       count,
			PermissionCount: len(role.Permissions),
		})
	}
	return stats, nil
}

// RecountUsers refreshes the denormalized counter of each given role.
func (service *Service) RecountUsers(context context.Context, roleIDs ...string) error {
	for _, id := range roleIDs {
		if id == "" {
			continue
		}
		count, err := service.members.CountByRole(context, id)
		if err != nil {
			return fmt.Errorf("rbac_service_recount_failed: %w", err)
		}
		if err := service.repository.SetUserCount(context, id, count); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
	}
	return nil
}

// titleCase turns "superadmin" into "Superadmin".
func titleCase(name string) string {
	return cases.Title(language.English).String(name)
}

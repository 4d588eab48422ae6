// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/middleware"
	requestutil "github.com/taibuivan/warden/internal/platform/request"
	"github.com/taibuivan/warden/internal/platform/respond"
	"github.com/taibuivan/warden/internal/platform/validate"
)

// adminLevel is the minimum role level for account administration.
const adminLevel = 8

// AdminHandler implements the /users endpoints.
type AdminHandler struct {
	service *Service
	guard   *middleware.Guard
}

// NewAdminHandler constructs a new [AdminHandler].
func NewAdminHandler(service *Service, guard *middleware.Guard) *AdminHandler {
	return &AdminHandler{service: service, guard: guard}
}

/*
Routes returns the user administration router.

Reading a user is open to the user itself and to admins. Changing role,
status or lock needs level 8 and users:update.
*/
func (handler *AdminHandler) Routes() chi.Router {
	router := chi.NewRouter()

	canAdminister := handler.guard.Require(
		access.RequireMinLevel(adminLevel),
		access.RequirePermission(access.ResourceUsers, access.ActionUpdate),
	)

	router.Route("/{id}", func(r chi.Router) {
		r.With(handler.guard.RequireOwnerOrAdmin("id", constants.RoleAdmin, constants.RoleSuperAdmin)).Get("/", handler.get)
		r.With(canAdminister).Put("/role", handler.assignRole)
		r.With(canAdminister).Put("/status", handler.setStatus)
		r.With(canAdminister).Post("/unlock", handler.unlock)
	})

	return router
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (handler *AdminHandler) get(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id", "User")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetUser(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

/*
assignRole moves a user to another role.

PUT /api/v1/users/{id}/role

Response:
  - 200: User with its new role
  - 403: FORBIDDEN: Role above the caller's level
  - 422: CONSTRAINT_VIOLATION: Inactive role
*/
func (handler *AdminHandler) assignRole(writer http.ResponseWriter, request *http.Request) {
	var input assignRoleRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ID(request, "id", "User")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.AssignRole(request.Context(), requestutil.Principal(request), id, input.RoleID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

// setStatus activates or deactivates an account.
func (handler *AdminHandler) setStatus(writer http.ResponseWriter, request *http.Request) {
	var input statusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if input.IsActive == nil {
		respond.Error(writer, request, validate.RequiredError("is_active", "Status is required"))
		return
	}

	id, err := requestutil.ID(request, "id", "User")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.SetActive(request.Context(), requestutil.Principal(request), id, *input.IsActive); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// unlock clears a lockout.
func (handler *AdminHandler) unlock(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id", "User")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Unlock(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

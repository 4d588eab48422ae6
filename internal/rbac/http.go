// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/middleware"
	requestutil "github.com/taibuivan/warden/internal/platform/request"
	"github.com/taibuivan/warden/internal/platform/respond"
	"github.com/taibuivan/warden/pkg/pagination"
)

// Handler implements the /roles HTTP surface.
type Handler struct {
	service *Service
	guard   *middleware.Guard
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, guard *middleware.Guard) *Handler {
	return &Handler{service: service, guard: guard}
}

// permissionBody is the payload of the permission add/remove endpoints.
type permissionBody struct {
	Resource access.Resource `json:"resource"`
	Actions  []access.Action `json:"actions"`
}

/*
Routes returns a router for role management. Every route requires an
authenticated principal; reads need roles:read and each write its own action.
*/
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	canRead := handler.guard.Require(access.RequirePermission(access.ResourceRoles, access.ActionRead))
	canCreate := handler.guard.Require(access.RequirePermission(access.ResourceRoles, access.ActionCreate))
	canUpdate := handler.guard.Require(access.RequirePermission(access.ResourceRoles, access.ActionUpdate))
	canDelete := handler.guard.Require(access.RequirePermission(access.ResourceRoles, access.ActionDelete))

	router.With(canRead).Get("/", handler.list)
	router.With(canRead).Get("/stats", handler.stats)
	router.With(canCreate).Post("/", handler.create)

	router.Route("/{id}", func(r chi.Router) {
		r.With(canRead).Get("/", handler.get)
		r.With(canRead).Get("/users", handler.members)
		r.With(canUpdate).Patch("/", handler.update)
		r.With(canDelete).Delete("/", handler.delete)
		r.With(canUpdate).Post("/permissions", handler.addPermission)
		r.With(canUpdate).Delete("/permissions", handler.removePermission)
	})

	return router
}

// # Queries

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.service.List(request.Context(), requestutil.QueryBool(request, "active"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, roles)
}

func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.service.Get(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, role)
}

func (handler *Handler) members(writer http.ResponseWriter, request *http.Request) {
	page := pagination.FromRequest(request)

	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	members, total, err := handler.service.Members(request.Context(), id, page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, members, pagination.NewMeta(page.Page, page.Limit, total))
}

func (handler *Handler) stats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.service.Stats(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, stats)
}

// # Mutations

func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input CreateRoleInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.service.Create(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, role)
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input UpdateRoleInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.service.Update(request.Context(), id, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, role)
}

func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	force := requestutil.QueryBool(request, "force")

	// The unsafe override is reserved for the top system role
	if force {
		principal := requestutil.Principal(request)
		if err := access.Evaluate(access.Request{Principal: principal}, access.RequireRole(constants.RoleSuperAdmin)); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), id, force); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func (handler *Handler) addPermission(writer http.ResponseWriter, request *http.Request) {
	var body permissionBody
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.service.AddPermission(request.Context(), id, body.Resource, body.Actions...)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, role)
}

func (handler *Handler) removePermission(writer http.ResponseWriter, request *http.Request) {
	var body permissionBody
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ID(request, "id", "Role")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.service.RemovePermission(request.Context(), id, body.Resource, body.Actions...)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, role)
}

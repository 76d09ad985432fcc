// Package admin exposes the administrative surface of the gate: role and
// permission management proxied to the upstream backend, user override
// management, and cache invalidation. System roles are protected here, at
// the mutation boundary, not inside permission resolution.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/gate"
	"github.com/akademos/akademos/internal/platform/httpx"
	"github.com/akademos/akademos/internal/refresh"
	"github.com/akademos/akademos/internal/shared"
	"github.com/akademos/akademos/internal/upstream"
)

// RoleDirectory is the slice of the upstream client the role handlers use.
type RoleDirectory interface {
	Roles(ctx context.Context) ([]upstream.Role, error)
	Permissions(ctx context.Context) ([]upstream.Permission, error)
	CreateRole(ctx context.Context, name, description string) (upstream.Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (upstream.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	SetRolePermissions(ctx context.Context, id int64, permissionIDs []int64) error
}

// RolesHandler manages role administration.
type RolesHandler struct {
	logger     *slog.Logger
	directory  RoleDirectory
	controller *refresh.Controller
	guard      gate.Middleware
	validate   *validator.Validate
}

// NewRolesHandler builds a RolesHandler instance.
func NewRolesHandler(logger *slog.Logger, directory RoleDirectory, controller *refresh.Controller, guard gate.Middleware) *RolesHandler {
	return &RolesHandler{
		logger:     logger,
		directory:  directory,
		controller: controller,
		guard:      guard,
		validate:   validator.New(),
	}
}

// MountRoutes registers role administration routes.
func (h *RolesHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRolesView))
		r.Get("/roles", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermPermissionsView))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRolesEdit))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Put("/roles/{roleID}/permissions", h.setRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermRolesDelete))
		r.Delete("/roles/{roleID}", h.deleteRole)
	})
}

func (h *RolesHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.directory.Roles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *RolesHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.directory.Permissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *RolesHandler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decodeRole(w, r, &req) {
		return
	}
	if catalog.IsSystemRole(req.Name) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrSystemRole.Error())
		return
	}
	role, err := h.directory.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	h.controller.InvalidateRoles(r.Context())
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *RolesHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decodeRole(w, r, &req) {
		return
	}
	if !h.ensureMutable(w, r, id) {
		return
	}
	if catalog.IsSystemRole(req.Name) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrSystemRole.Error())
		return
	}
	role, err := h.directory.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update role", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	h.controller.InvalidateRoles(r.Context())
	httpx.JSON(w, http.StatusOK, role)
}

func (h *RolesHandler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if !h.ensureMutable(w, r, id) {
		return
	}
	if err := h.directory.DeleteRole(r.Context(), id); err != nil {
		h.logger.Error("delete role", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	h.controller.InvalidateRoles(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type rolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *RolesHandler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req rolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !h.ensureMutable(w, r, id) {
		return
	}
	if err := h.directory.SetRolePermissions(r.Context(), id, req.PermissionIDs); err != nil {
		h.logger.Error("set role permissions", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	h.controller.InvalidateRoles(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ensureMutable rejects mutations targeting a system role. It consults the
// live upstream role list so a freshly renamed role cannot dodge the check
// through a stale snapshot.
func (h *RolesHandler) ensureMutable(w http.ResponseWriter, r *http.Request, id int64) bool {
	roles, err := h.directory.Roles(r.Context())
	if err != nil {
		h.logger.Error("resolve role for mutation", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return false
	}
	for _, role := range roles {
		if role.ID != id {
			continue
		}
		if catalog.IsSystemRole(role.Name) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrSystemRole.Error())
			return false
		}
		return true
	}
	httpx.RespondError(w, httpx.ErrNotFound)
	return false
}

func (h *RolesHandler) decodeRole(w http.ResponseWriter, r *http.Request, req *roleRequest) bool {
	if err := httpx.DecodeJSON(r, req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *RolesHandler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return 0, false
	}
	return id, true
}

package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akademos/akademos/internal/gate"
	"github.com/akademos/akademos/internal/platform/httpx"
	"github.com/akademos/akademos/internal/refresh"
	"github.com/akademos/akademos/internal/shared"
)

// InvalidateHandler exposes cache invalidation to operators and to the
// backend's change webhooks.
type InvalidateHandler struct {
	logger     *slog.Logger
	controller *refresh.Controller
	guard      gate.Middleware
	validate   *validator.Validate
}

// NewInvalidateHandler builds an InvalidateHandler instance.
func NewInvalidateHandler(logger *slog.Logger, controller *refresh.Controller, guard gate.Middleware) *InvalidateHandler {
	return &InvalidateHandler{
		logger:     logger,
		controller: controller,
		guard:      guard,
		validate:   validator.New(),
	}
}

// MountRoutes registers the invalidation route.
func (h *InvalidateHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermSystemManage))
		r.Post("/invalidate", h.invalidate)
	})
}

type invalidateRequest struct {
	Scope  string `json:"scope" validate:"required,oneof=roles permissions user all"`
	UserID int64  `json:"user_id" validate:"required_if=Scope user"`
}

func (h *InvalidateHandler) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	switch req.Scope {
	case "roles":
		h.controller.InvalidateRoles(r.Context())
	case "permissions":
		h.controller.InvalidatePermissions(r.Context())
	case "user":
		h.controller.InvalidateUserPermissions(req.UserID)
	case "all":
		h.controller.InvalidateAll(r.Context())
	}

	h.logger.Info("cache invalidated", slog.String("scope", req.Scope), slog.Int64("user_id", req.UserID))
	w.WriteHeader(http.StatusAccepted)
}

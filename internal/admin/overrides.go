package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akademos/akademos/internal/gate"
	"github.com/akademos/akademos/internal/overrides"
	"github.com/akademos/akademos/internal/platform/httpx"
	"github.com/akademos/akademos/internal/shared"
)

// OverridesHandler manages per-user permission overrides. Mutations go
// through the override store directly; the store keeps its own cache current,
// so no catalog invalidation is involved.
type OverridesHandler struct {
	logger   *slog.Logger
	store    *overrides.Store
	guard    gate.Middleware
	validate *validator.Validate
}

// NewOverridesHandler builds an OverridesHandler instance.
func NewOverridesHandler(logger *slog.Logger, store *overrides.Store, guard gate.Middleware) *OverridesHandler {
	return &OverridesHandler{
		logger:   logger,
		store:    store,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers override administration routes.
func (h *OverridesHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermUsersView))
		r.Get("/users/{userID}/overrides", h.getOverrides)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermUsersEdit))
		r.Put("/users/{userID}/overrides/{permission}", h.putOverride)
		r.Delete("/users/{userID}/overrides/{permission}", h.clearOverride)
	})
}

type overridesResponse struct {
	UserID      int64    `json:"user_id"`
	Custom      []string `json:"custom"`
	Denied      []string `json:"denied"`
	SyncPending bool     `json:"sync_pending,omitempty"`
	SyncDetail  string   `json:"sync_detail,omitempty"`
}

func (h *OverridesHandler) getOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	state := h.store.Get(r.Context(), userID)
	httpx.JSON(w, http.StatusOK, overridesResponse{
		UserID: userID,
		Custom: state.Custom,
		Denied: state.Denied,
	})
}

type overrideRequest struct {
	Op string `json:"op" validate:"required,oneof=grant deny"`
}

func (h *OverridesHandler) putOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	permission := chi.URLParam(r, "permission")
	if permission == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission name required")
		return
	}

	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var err error
	switch req.Op {
	case overrides.OpGrant:
		err = h.store.Grant(r.Context(), userID, permission)
	case overrides.OpDeny:
		err = h.store.Deny(r.Context(), userID, permission)
	}
	h.respondMutation(w, r, userID, err)
}

func (h *OverridesHandler) clearOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	permission := chi.URLParam(r, "permission")
	if permission == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission name required")
		return
	}
	err := h.store.Clear(r.Context(), userID, permission)
	h.respondMutation(w, r, userID, err)
}

// respondMutation reports the applied override state. A persistence failure
// does not roll the mutation back; it is surfaced to the caller so the admin
// UI can show that remote reconciliation is pending.
func (h *OverridesHandler) respondMutation(w http.ResponseWriter, r *http.Request, userID int64, err error) {
	state := h.store.Get(r.Context(), userID)
	resp := overridesResponse{
		UserID: userID,
		Custom: state.Custom,
		Denied: state.Denied,
	}
	if err != nil {
		if !errors.Is(err, shared.ErrOverrideSync) {
			h.logger.Error("override mutation", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		h.logger.Warn("override applied locally, persistence pending",
			slog.Int64("user_id", userID), slog.Any("error", err))
		resp.SyncPending = true
		resp.SyncDetail = err.Error()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *OverridesHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return 0, false
	}
	return id, true
}

package gate

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akademos/akademos/internal/platform/httpx"
	"github.com/akademos/akademos/internal/resolve"
	"github.com/akademos/akademos/internal/shared"
)

// CrossChecker submits a sampled decision for re-validation against the
// upstream backend.
type CrossChecker interface {
	EnqueueCrossCheck(ctx context.Context, userID int64, permission string, local bool) error
}

// Handler exposes the decision API consumed by the frontend: point checks,
// the effective permission set, and module-level menu visibility.
type Handler struct {
	logger   *slog.Logger
	gate     *Gate
	engine   *resolve.Engine
	validate *validator.Validate

	crossCheck CrossChecker
	sampleRate float64
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, g *Gate, engine *resolve.Engine) *Handler {
	return &Handler{logger: logger, gate: g, engine: engine, validate: validator.New()}
}

// EnableCrossCheck samples single-permission decisions at the given rate and
// hands them to the checker. Divergence is reported by the worker, never
// enforced; the local decision stays authoritative.
func (h *Handler) EnableCrossCheck(checker CrossChecker, rate float64) {
	h.crossCheck = checker
	h.sampleRate = rate
}

// MountRoutes registers decision routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.checkQuery)
	r.Post("/check", h.checkBody)
	r.Get("/effective", h.effective)
	r.Get("/menu", h.menu)
}

type checkRequest struct {
	Permission  string   `json:"permission"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
	RequireAll  bool     `json:"require_all"`
	Module      string   `json:"module"`
	Action      string   `json:"action"`
}

type checkResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Handler) checkQuery(w http.ResponseWriter, r *http.Request) {
	req := Requirement{
		Permission: r.URL.Query().Get("permission"),
		Module:     r.URL.Query().Get("module"),
		Action:     r.URL.Query().Get("action"),
	}
	if req.Empty() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission or module required")
		return
	}
	h.respondDecision(w, r, req)
}

func (h *Handler) checkBody(w http.ResponseWriter, r *http.Request) {
	var body checkRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req := Requirement{
		Permission:  body.Permission,
		Permissions: body.Permissions,
		RequireAll:  body.RequireAll,
		Module:      body.Module,
		Action:      body.Action,
	}
	if req.Empty() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission, permissions or module required")
		return
	}
	h.respondDecision(w, r, req)
}

func (h *Handler) respondDecision(w http.ResponseWriter, r *http.Request, req Requirement) {
	id := shared.IdentityFromContext(r.Context())
	decision := h.gate.Decide(r.Context(), id, req)
	h.maybeCrossCheck(r.Context(), id, req, decision)
	httpx.JSON(w, http.StatusOK, checkResponse{
		Decision: decision.Outcome.String(),
		Reason:   decision.Reason,
	})
}

func (h *Handler) maybeCrossCheck(ctx context.Context, id shared.Identity, req Requirement, decision Decision) {
	if h.crossCheck == nil || req.Permission == "" {
		return
	}
	if decision.Outcome != OutcomeAllow && decision.Outcome != OutcomeDeny {
		return
	}
	if rand.Float64() >= h.sampleRate {
		return
	}
	if err := h.crossCheck.EnqueueCrossCheck(ctx, id.UserID, req.Permission, decision.Outcome == OutcomeAllow); err != nil && h.logger != nil {
		h.logger.Warn("cross-check enqueue failed", slog.Any("error", err))
	}
}

type effectiveResponse struct {
	Permissions []string `json:"permissions"`
	Loading     bool     `json:"loading"`
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if !id.Authenticated {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	set, ready := h.engine.EffectiveFor(r.Context(), id)
	names := set.Names()
	if names == nil {
		names = []string{}
	}
	httpx.JSON(w, http.StatusOK, effectiveResponse{Permissions: names, Loading: !ready})
}

type menuResponse struct {
	Modules []string `json:"modules"`
	Loading bool     `json:"loading"`
}

// menu reports the modules the user holds at least one permission under,
// which is what drives navigation visibility.
func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if !id.Authenticated {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	set, ready := h.engine.EffectiveFor(r.Context(), id)
	modules := set.Modules()
	if modules == nil {
		modules = []string{}
	}
	httpx.JSON(w, http.StatusOK, menuResponse{Modules: modules, Loading: !ready})
}

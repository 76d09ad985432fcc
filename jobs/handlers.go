package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/akademos/akademos/internal/refresh"
	"github.com/akademos/akademos/internal/upstream"
)

// Handlers owns the dependencies the task handlers need.
type Handlers struct {
	Controller *refresh.Controller
	Upstream   *upstream.Client
	Logger     *slog.Logger
}

// HandleCatalogRefresh processes TaskCatalogRefresh tasks.
func (h *Handlers) HandleCatalogRefresh(ctx context.Context, t *asynq.Task) error {
	var payload CatalogRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	start := time.Now()
	if err := h.Controller.RefreshNow(ctx); err != nil {
		h.Logger.Warn("catalog refresh task failed",
			slog.String("request_id", payload.RequestID), slog.Any("error", err))
		return err
	}
	h.Logger.Info("catalog refreshed",
		slog.String("request_id", payload.RequestID),
		slog.Duration("took", time.Since(start)))
	return nil
}

// HandleCatalogSweep reloads the catalog only when the freshness window has
// lapsed. Registered as a periodic task.
func (h *Handlers) HandleCatalogSweep(ctx context.Context, t *asynq.Task) error {
	return h.Controller.SweepIfStale(ctx)
}

// HandleOverrideSync processes TaskOverrideSync tasks.
func (h *Handlers) HandleOverrideSync(ctx context.Context, t *asynq.Task) error {
	var payload OverrideSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := h.Upstream.PushOverride(ctx, payload.UserID, payload.Permission, payload.Op); err != nil {
		h.Logger.Warn("override sync failed, will retry",
			slog.String("request_id", payload.RequestID),
			slog.Int64("user_id", payload.UserID),
			slog.String("permission", payload.Permission),
			slog.Any("error", err))
		return err
	}
	return nil
}

// HandleCrossCheck processes TaskCrossCheck tasks: the local decision stays
// authoritative, divergence is only reported.
func (h *Handlers) HandleCrossCheck(ctx context.Context, t *asynq.Task) error {
	var payload CrossCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	remote, err := h.Upstream.CheckPermission(ctx, payload.UserID, payload.Permission)
	if err != nil {
		h.Logger.Warn("cross-check unavailable",
			slog.String("request_id", payload.RequestID), slog.Any("error", err))
		return asynq.SkipRetry
	}
	if remote != payload.Local {
		h.Logger.Error("decision divergence detected",
			slog.String("request_id", payload.RequestID),
			slog.Int64("user_id", payload.UserID),
			slog.String("permission", payload.Permission),
			slog.Bool("local", payload.Local),
			slog.Bool("remote", remote))
	}
	return nil
}

package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogRefresh re-fetches the role/permission catalog.
	TaskCatalogRefresh = "catalog:refresh"
	// TaskCatalogSweep reloads the catalog when the freshness window lapsed.
	TaskCatalogSweep = "catalog:sweep"
	// TaskOverrideSync pushes an override mutation to the upstream backend.
	TaskOverrideSync = "override:sync"
	// TaskCrossCheck re-validates a sampled gate decision upstream.
	TaskCrossCheck = "authz:crosscheck"
)

// CatalogRefreshPayload describes a catalog refresh request.
type CatalogRefreshPayload struct {
	RequestID string `json:"request_id"`
}

// NewCatalogRefreshTask constructs an Asynq task.
func NewCatalogRefreshTask() (*asynq.Task, error) {
	data, err := json.Marshal(CatalogRefreshPayload{RequestID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogRefresh, data), nil
}

// NewCatalogSweepTask constructs the periodic sweep task.
func NewCatalogSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogSweep, nil)
}

// OverrideSyncPayload describes an override mutation to propagate upstream.
type OverrideSyncPayload struct {
	RequestID  string `json:"request_id"`
	UserID     int64  `json:"user_id"`
	Permission string `json:"permission"`
	Op         string `json:"op"`
}

// NewOverrideSyncTask constructs an Asynq task.
func NewOverrideSyncTask(userID int64, permission, op string) (*asynq.Task, error) {
	data, err := json.Marshal(OverrideSyncPayload{
		RequestID:  uuid.NewString(),
		UserID:     userID,
		Permission: permission,
		Op:         op,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverrideSync, data), nil
}

// CrossCheckPayload describes a sampled decision to re-validate upstream.
type CrossCheckPayload struct {
	RequestID  string `json:"request_id"`
	UserID     int64  `json:"user_id"`
	Permission string `json:"permission"`
	Local      bool   `json:"local"`
}

// NewCrossCheckTask constructs an Asynq task.
func NewCrossCheckTask(userID int64, permission string, local bool) (*asynq.Task, error) {
	data, err := json.Marshal(CrossCheckPayload{
		RequestID:  uuid.NewString(),
		UserID:     userID,
		Permission: permission,
		Local:      local,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCrossCheck, data), nil
}

package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits gate tasks to the Asynq queue. It satisfies
// refresh.Enqueuer and overrides.Syncer.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueCatalogRefresh schedules a catalog refetch.
func (e *Enqueuer) EnqueueCatalogRefresh(ctx context.Context) error {
	task, err := NewCatalogRefreshTask()
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// SyncOverride schedules upstream propagation of an override mutation.
// Retries back off so a flapping backend does not drop the mutation.
func (e *Enqueuer) SyncOverride(ctx context.Context, userID int64, permission, op string) error {
	task, err := NewOverrideSyncTask(userID, permission, op)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second))
	return err
}

// EnqueueCrossCheck schedules re-validation of a sampled decision.
func (e *Enqueuer) EnqueueCrossCheck(ctx context.Context, userID int64, permission string, local bool) error {
	task, err := NewCrossCheckTask(userID, permission, local)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

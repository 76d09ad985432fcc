// Package refresh keeps the catalog and override caches from serving stale
// decisions after administrative changes.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/overrides"
)

// Enqueuer hands a refresh request to the background worker so its cache
// refreshes too. The serving process always refetches in-process regardless.
type Enqueuer interface {
	EnqueueCatalogRefresh(ctx context.Context) error
}

// Controller coordinates re-fetching cached permission data. Invalidation
// calls never block on the network: they mark caches stale and trigger an
// asynchronous refetch. When a refetch fails the previous snapshot stays in
// effect.
type Controller struct {
	catalog   *catalog.Store
	overrides *overrides.Store
	enqueuer  Enqueuer
	logger    *slog.Logger
	timeout   time.Duration
}

// NewController constructs a Controller. The enqueuer may be nil.
func NewController(catalogStore *catalog.Store, overrideStore *overrides.Store, enqueuer Enqueuer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		catalog:   catalogStore,
		overrides: overrideStore,
		enqueuer:  enqueuer,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

// InvalidateRoles marks role data stale and schedules a refetch.
func (c *Controller) InvalidateRoles(ctx context.Context) {
	c.invalidateCatalog(ctx)
}

// InvalidatePermissions marks permission data stale and schedules a refetch.
// Roles embed permissions, so the whole catalog is refetched.
func (c *Controller) InvalidatePermissions(ctx context.Context) {
	c.invalidateCatalog(ctx)
}

// InvalidateUserPermissions drops the cached overrides for one user; they
// reload lazily on the next query.
func (c *Controller) InvalidateUserPermissions(userID int64) {
	if c.overrides != nil {
		c.overrides.Invalidate(userID)
	}
}

// InvalidateAll refreshes everything: catalog and every cached override.
func (c *Controller) InvalidateAll(ctx context.Context) {
	if c.overrides != nil {
		c.overrides.InvalidateAll()
	}
	c.invalidateCatalog(ctx)
}

// RefreshNow performs a synchronous catalog reload. Used by the background
// worker and the staleness sweep.
func (c *Controller) RefreshNow(ctx context.Context) error {
	_, err := c.catalog.Load(ctx)
	return err
}

// SweepIfStale reloads the catalog when the freshness window has lapsed.
func (c *Controller) SweepIfStale(ctx context.Context) error {
	if !c.catalog.IsStale() {
		return nil
	}
	return c.RefreshNow(ctx)
}

func (c *Controller) invalidateCatalog(ctx context.Context) {
	c.catalog.MarkStale()

	// The task only refreshes the worker's own cache; this process must
	// reload its store itself or the engine would serve the stale snapshot
	// until the freshness sweep.
	if c.enqueuer != nil {
		if err := c.enqueuer.EnqueueCatalogRefresh(ctx); err != nil {
			c.logger.Warn("enqueue catalog refresh failed", slog.Any("error", err))
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if _, err := c.catalog.Load(ctx); err != nil {
			c.logger.Warn("background catalog refresh failed", slog.Any("error", err))
		}
	}()
}

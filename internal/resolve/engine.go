package resolve

import (
	"context"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/shared"
)

// CatalogSource supplies the current catalog snapshot.
type CatalogSource interface {
	Snapshot() (*catalog.Snapshot, catalog.State)
}

// OverrideSource supplies per-user custom grants and denials. Missing users
// resolve to empty sets.
type OverrideSource interface {
	Overrides(ctx context.Context, userID int64) (custom, denied []string)
}

// Engine evaluates permissions for identities against the current catalog
// and override snapshots. Queries never return errors: absence of permission
// is false, and every source of uncertainty (anonymous caller, catalog not
// yet loaded) fails closed.
type Engine struct {
	catalog   CatalogSource
	overrides OverrideSource
}

// NewEngine constructs an Engine.
func NewEngine(catalogSource CatalogSource, overrideSource OverrideSource) *Engine {
	return &Engine{catalog: catalogSource, overrides: overrideSource}
}

// Loading reports whether the engine has no catalog snapshot to evaluate
// against. Callers must treat false query results as provisional while this
// holds.
func (e *Engine) Loading() bool {
	snap, _ := e.catalog.Snapshot()
	return snap == nil
}

// EffectiveFor computes the identity's effective permission set. The second
// return is false while the catalog has not been loaded; the returned set is
// then empty.
func (e *Engine) EffectiveFor(ctx context.Context, id shared.Identity) (Set, bool) {
	if !id.Authenticated {
		return Set{}, !e.Loading()
	}
	snap, _ := e.catalog.Snapshot()
	if snap == nil {
		return Set{}, false
	}
	custom, denied := e.overrides.Overrides(ctx, id.UserID)
	return Effective(snap.PermissionsForRole(id.Role), custom, denied), true
}

// HasPermission reports whether the identity holds the named permission.
func (e *Engine) HasPermission(ctx context.Context, id shared.Identity, name string) bool {
	set, ready := e.EffectiveFor(ctx, id)
	if !ready {
		return false
	}
	return set.Has(name)
}

// HasAnyPermission reports whether the identity holds at least one of the
// named permissions.
func (e *Engine) HasAnyPermission(ctx context.Context, id shared.Identity, names []string) bool {
	set, ready := e.EffectiveFor(ctx, id)
	if !ready {
		return false
	}
	return set.HasAny(names)
}

// HasAllPermissions reports whether the identity holds every named
// permission. An empty list is vacuously true.
func (e *Engine) HasAllPermissions(ctx context.Context, id shared.Identity, names []string) bool {
	if len(names) == 0 {
		return true
	}
	set, ready := e.EffectiveFor(ctx, id)
	if !ready {
		return false
	}
	return set.HasAll(names)
}

// CanAccess answers module-level access: with an action it checks the exact
// "module.action" permission, without one it checks for any permission under
// the module.
func (e *Engine) CanAccess(ctx context.Context, id shared.Identity, module, action string) bool {
	set, ready := e.EffectiveFor(ctx, id)
	if !ready {
		return false
	}
	return set.CanAccess(module, action)
}

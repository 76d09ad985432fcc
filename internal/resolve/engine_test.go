package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/shared"
)

type stubCatalog struct {
	snap  *catalog.Snapshot
	state catalog.State
}

func (s *stubCatalog) Snapshot() (*catalog.Snapshot, catalog.State) {
	return s.snap, s.state
}

type stubOverrides struct {
	custom map[int64][]string
	denied map[int64][]string
}

func (s *stubOverrides) Overrides(ctx context.Context, userID int64) (custom, denied []string) {
	return s.custom[userID], s.denied[userID]
}

func perms(names ...string) []catalog.Permission {
	out := make([]catalog.Permission, 0, len(names))
	for _, n := range names {
		out = append(out, catalog.Permission{Name: n})
	}
	return out
}

func testSnapshot() *catalog.Snapshot {
	roles := []catalog.Role{
		{Name: "teacher", Permissions: perms("students.view", "grades.view", "grades.edit")},
		{Name: "registrar", Permissions: perms("students.view", "students.edit", "students.delete")},
		{Name: "viewer", Permissions: perms("dashboard")},
	}
	return catalog.NewSnapshot(roles, nil, time.Now())
}

func newTestEngine(custom, denied map[int64][]string) *Engine {
	return NewEngine(
		&stubCatalog{snap: testSnapshot(), state: catalog.StateFresh},
		&stubOverrides{custom: custom, denied: denied},
	)
}

func identity(userID int64, role string) shared.Identity {
	return shared.Identity{UserID: userID, Role: role, Authenticated: true}
}

func TestEngineRoleGrants(t *testing.T) {
	e := newTestEngine(nil, nil)
	ctx := context.Background()
	id := identity(1, "teacher")

	assert.True(t, e.HasPermission(ctx, id, "grades.edit"))
	assert.False(t, e.HasPermission(ctx, id, "students.delete"))
}

func TestEngineDenialOverridesRoleGrant(t *testing.T) {
	e := newTestEngine(nil, map[int64][]string{1: {"grades.edit"}})
	ctx := context.Background()
	id := identity(1, "teacher")

	assert.False(t, e.HasPermission(ctx, id, "grades.edit"))
	assert.True(t, e.HasPermission(ctx, id, "grades.view"))
}

func TestEngineCustomGrantExtendsRole(t *testing.T) {
	e := newTestEngine(map[int64][]string{1: {"reports.export"}}, nil)
	ctx := context.Background()
	id := identity(1, "teacher")

	assert.True(t, e.HasPermission(ctx, id, "reports.export"))
}

func TestEngineUnknownRoleResolvesEmpty(t *testing.T) {
	e := newTestEngine(nil, nil)
	ctx := context.Background()
	id := identity(1, "nonexistent-role")

	set, ready := e.EffectiveFor(ctx, id)
	assert.True(t, ready)
	assert.Empty(t, set.Names())
}

func TestEngineUnknownRoleStillHonorsCustomGrants(t *testing.T) {
	e := newTestEngine(map[int64][]string{7: {"students.view"}}, nil)
	ctx := context.Background()
	id := identity(7, "nonexistent-role")

	assert.True(t, e.HasPermission(ctx, id, "students.view"))
}

func TestEngineUnauthenticatedFailsClosed(t *testing.T) {
	e := newTestEngine(map[int64][]string{0: {"students.view"}}, nil)
	ctx := context.Background()
	anon := shared.Identity{}

	assert.False(t, e.HasPermission(ctx, anon, "students.view"))
	set, ready := e.EffectiveFor(ctx, anon)
	assert.True(t, ready, "catalog is loaded, emptiness is definitive")
	assert.Empty(t, set.Names())
}

func TestEngineLoadingFailsClosed(t *testing.T) {
	e := NewEngine(&stubCatalog{snap: nil, state: catalog.StateLoading}, &stubOverrides{})
	ctx := context.Background()
	id := identity(1, "teacher")

	assert.True(t, e.Loading())
	assert.False(t, e.HasPermission(ctx, id, "students.view"))

	set, ready := e.EffectiveFor(ctx, id)
	assert.False(t, ready)
	assert.Empty(t, set.Names())
}

func TestEngineHasAllEmptyListWhileLoading(t *testing.T) {
	e := NewEngine(&stubCatalog{}, &stubOverrides{})
	ctx := context.Background()

	// Vacuous truth holds even before the catalog arrives.
	assert.True(t, e.HasAllPermissions(ctx, identity(1, "teacher"), nil))
	assert.False(t, e.HasAnyPermission(ctx, identity(1, "teacher"), []string{"students.view"}))
}

func TestEngineHasAnyHasAll(t *testing.T) {
	e := newTestEngine(nil, map[int64][]string{2: {"students.delete"}})
	ctx := context.Background()
	id := identity(2, "registrar")

	assert.True(t, e.HasAnyPermission(ctx, id, []string{"students.delete", "students.edit"}))
	assert.False(t, e.HasAllPermissions(ctx, id, []string{"students.delete", "students.edit"}))
	assert.True(t, e.HasAllPermissions(ctx, id, []string{"students.view", "students.edit"}))
}

func TestEngineCanAccessModule(t *testing.T) {
	e := newTestEngine(nil, map[int64][]string{3: {"students.view", "students.edit", "students.delete"}})
	ctx := context.Background()

	assert.True(t, e.CanAccess(ctx, identity(1, "teacher"), "grades", ""))
	assert.True(t, e.CanAccess(ctx, identity(1, "teacher"), "grades", "edit"))
	assert.False(t, e.CanAccess(ctx, identity(1, "teacher"), "finance", ""))

	// Every students permission denied leaves the registrar without module
	// access at all.
	assert.False(t, e.CanAccess(ctx, identity(3, "registrar"), "students", ""))

	// Bare permission names answer under the general module.
	assert.True(t, e.CanAccess(ctx, identity(4, "viewer"), "general", ""))
}

func TestEngineCombinedOverrideScenario(t *testing.T) {
	roles := []catalog.Role{
		{Name: "teacher", Permissions: perms("students.view", "grades.view")},
	}
	e := NewEngine(
		&stubCatalog{snap: catalog.NewSnapshot(roles, nil, time.Now()), state: catalog.StateFresh},
		&stubOverrides{
			custom: map[int64][]string{1: {"students.export"}},
			denied: map[int64][]string{1: {"grades.view"}},
		},
	)
	ctx := context.Background()
	id := identity(1, "teacher")

	assert.False(t, e.HasPermission(ctx, id, "grades.view"), "denial wins over the role grant")
	assert.True(t, e.HasPermission(ctx, id, "students.export"), "custom grant holds alongside the denial")
	assert.True(t, e.HasPermission(ctx, id, "students.view"))
	assert.False(t, e.CanAccess(ctx, id, "grades", ""), "denying the only grades permission closes the module")
	assert.True(t, e.CanAccess(ctx, id, "students", ""))

	set, ready := e.EffectiveFor(ctx, id)
	assert.True(t, ready)
	assert.Equal(t, []string{"students.export", "students.view"}, set.Names())
}

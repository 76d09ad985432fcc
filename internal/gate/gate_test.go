package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/resolve"
	"github.com/akademos/akademos/internal/shared"
)

type stubCatalog struct {
	snap *catalog.Snapshot
}

func (s *stubCatalog) Snapshot() (*catalog.Snapshot, catalog.State) {
	if s.snap == nil {
		return nil, catalog.StateLoading
	}
	return s.snap, catalog.StateFresh
}

type stubOverrides struct {
	custom map[int64][]string
	denied map[int64][]string
}

func (s *stubOverrides) Overrides(ctx context.Context, userID int64) (custom, denied []string) {
	return s.custom[userID], s.denied[userID]
}

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) RecordDecision(outcome string) {
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

func teacherSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot([]catalog.Role{
		{Name: "teacher", Permissions: []catalog.Permission{
			{Name: "students.view"},
			{Name: "grades.view"},
			{Name: "grades.edit"},
		}},
	}, nil, time.Now())
}

func newTestGate(snap *catalog.Snapshot, ov *stubOverrides, rec Recorder) *Gate {
	if ov == nil {
		ov = &stubOverrides{}
	}
	return New(resolve.NewEngine(&stubCatalog{snap: snap}, ov), rec)
}

func authed(userID int64, role string) shared.Identity {
	return shared.Identity{UserID: userID, Role: role, Authenticated: true}
}

func TestDecideUnauthenticatedTakesPrecedence(t *testing.T) {
	// Even while the catalog is loading, anonymous callers go to login.
	g := newTestGate(nil, nil, nil)

	decision := g.Decide(context.Background(), shared.Identity{}, Requirement{Permission: "students.view"})
	assert.Equal(t, OutcomeLogin, decision.Outcome)
}

func TestDecideLoadingNeverDenies(t *testing.T) {
	g := newTestGate(nil, nil, nil)

	decision := g.Decide(context.Background(), authed(1, "teacher"), Requirement{Permission: "students.view"})
	assert.Equal(t, OutcomeLoading, decision.Outcome)
	assert.NotEqual(t, OutcomeDeny, decision.Outcome)
}

func TestDecideSinglePermission(t *testing.T) {
	g := newTestGate(teacherSnapshot(), nil, nil)
	ctx := context.Background()
	id := authed(1, "teacher")

	assert.Equal(t, OutcomeAllow, g.Decide(ctx, id, Requirement{Permission: "grades.edit"}).Outcome)

	decision := g.Decide(ctx, id, Requirement{Permission: "finance.invoices"})
	assert.Equal(t, OutcomeDeny, decision.Outcome)
	assert.Equal(t, `missing permission "finance.invoices" (Finance module)`, decision.Reason)
}

func TestDecidePermissionListAnyAndAll(t *testing.T) {
	g := newTestGate(teacherSnapshot(), nil, nil)
	ctx := context.Background()
	id := authed(1, "teacher")

	any := Requirement{Permissions: []string{"finance.invoices", "grades.view"}}
	assert.Equal(t, OutcomeAllow, g.Decide(ctx, id, any).Outcome)

	all := Requirement{Permissions: []string{"finance.invoices", "grades.view"}, RequireAll: true}
	decision := g.Decide(ctx, id, all)
	assert.Equal(t, OutcomeDeny, decision.Outcome)
	assert.Contains(t, decision.Reason, "all of the permissions")
	assert.Contains(t, decision.Reason, `"finance.invoices"`)

	none := Requirement{Permissions: []string{"finance.invoices", "finance.budgets"}}
	decision = g.Decide(ctx, id, none)
	assert.Equal(t, OutcomeDeny, decision.Outcome)
	assert.Contains(t, decision.Reason, "one of the permissions")
}

func TestDecideModuleRequirement(t *testing.T) {
	g := newTestGate(teacherSnapshot(), nil, nil)
	ctx := context.Background()
	id := authed(1, "teacher")

	assert.Equal(t, OutcomeAllow, g.Decide(ctx, id, Requirement{Module: "grades"}).Outcome)
	assert.Equal(t, OutcomeAllow, g.Decide(ctx, id, Requirement{Module: "grades", Action: "edit"}).Outcome)

	decision := g.Decide(ctx, id, Requirement{Module: "finance"})
	assert.Equal(t, OutcomeDeny, decision.Outcome)
	assert.Equal(t, "no access to the Finance module", decision.Reason)

	decision = g.Decide(ctx, id, Requirement{Module: "students", Action: "delete"})
	assert.Equal(t, OutcomeDeny, decision.Outcome)
	assert.Equal(t, `missing permission "students.delete" (Students module)`, decision.Reason)
}

func TestDecideEmptyRequirementNeedsOnlyAuthentication(t *testing.T) {
	g := newTestGate(teacherSnapshot(), nil, nil)
	ctx := context.Background()

	assert.Equal(t, OutcomeAllow, g.Decide(ctx, authed(1, "teacher"), Requirement{}).Outcome)
	assert.Equal(t, OutcomeLogin, g.Decide(ctx, shared.Identity{}, Requirement{}).Outcome)
}

func TestDecideDenialOverridesShowThrough(t *testing.T) {
	ov := &stubOverrides{denied: map[int64][]string{1: {"grades.edit"}}}
	g := newTestGate(teacherSnapshot(), ov, nil)

	decision := g.Decide(context.Background(), authed(1, "teacher"), Requirement{Permission: "grades.edit"})
	assert.Equal(t, OutcomeDeny, decision.Outcome)
}

func TestElementVisibility(t *testing.T) {
	g := newTestGate(teacherSnapshot(), nil, nil)
	ctx := context.Background()
	id := authed(1, "teacher")

	assert.Equal(t, Show, g.Element(ctx, id, Requirement{Permission: "students.view"}))
	assert.Equal(t, Hide, g.Element(ctx, id, Requirement{Permission: "finance.invoices"}))

	// Elements hide rather than redirect for anonymous callers, and hide
	// while permission data is pending.
	assert.Equal(t, Hide, g.Element(ctx, shared.Identity{}, Requirement{Permission: "students.view"}))

	loading := newTestGate(nil, nil, nil)
	assert.Equal(t, Hide, loading.Element(ctx, id, Requirement{Permission: "students.view"}))
}

func TestDecideRecordsOutcomes(t *testing.T) {
	rec := &countingRecorder{}
	g := newTestGate(teacherSnapshot(), nil, rec)
	ctx := context.Background()

	g.Decide(ctx, authed(1, "teacher"), Requirement{Permission: "students.view"})
	g.Decide(ctx, authed(1, "teacher"), Requirement{Permission: "finance.invoices"})
	g.Decide(ctx, shared.Identity{}, Requirement{Permission: "students.view"})

	assert.Equal(t, 1, rec.outcomes["allow"])
	assert.Equal(t, 1, rec.outcomes["deny"])
	assert.Equal(t, 1, rec.outcomes["login"])
}

// Package gate translates resolution engine answers into route-level and
// element-level access decisions.
package gate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/resolve"
	"github.com/akademos/akademos/internal/shared"
)

// Outcome is a route-guard decision.
type Outcome int

const (
	// OutcomeAllow renders the route.
	OutcomeAllow Outcome = iota
	// OutcomeDeny blocks the route with a human-readable reason.
	OutcomeDeny
	// OutcomeLoading means permission data is not ready yet. Callers must
	// not present this as a denial.
	OutcomeLoading
	// OutcomeLogin means the caller is unauthenticated. It takes precedence
	// over every permission check.
	OutcomeLogin
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomeLoading:
		return "loading"
	case OutcomeLogin:
		return "login"
	default:
		return "unknown"
	}
}

// Visibility is an element-guard decision.
type Visibility int

const (
	// Hide renders nothing (or the caller's fallback node).
	Hide Visibility = iota
	// Show renders the guarded fragment.
	Show
)

// Requirement describes what a route or element demands. Exactly one of the
// three shapes is expected: a single permission, a permission list with an
// ANY/ALL combinator, or a module with an optional action.
type Requirement struct {
	Permission  string
	Permissions []string
	RequireAll  bool
	Module      string
	Action      string
}

// Empty reports whether the requirement demands nothing.
func (r Requirement) Empty() bool {
	return r.Permission == "" && len(r.Permissions) == 0 && r.Module == ""
}

// Decision is the gate's answer for a route.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Recorder observes gate decisions, typically for metrics.
type Recorder interface {
	RecordDecision(outcome string)
}

// Gate evaluates requirements against the resolution engine.
type Gate struct {
	engine   *resolve.Engine
	recorder Recorder
	titler   cases.Caser
}

// New constructs a Gate. The recorder may be nil.
func New(engine *resolve.Engine, recorder Recorder) *Gate {
	return &Gate{
		engine:   engine,
		recorder: recorder,
		titler:   cases.Title(language.English),
	}
}

// Decide evaluates a route requirement. Unauthenticated callers are sent to
// login before any permission data is consulted; while permission data is
// loading the outcome is Loading, never Deny.
func (g *Gate) Decide(ctx context.Context, id shared.Identity, req Requirement) Decision {
	decision := g.decide(ctx, id, req)
	if g.recorder != nil {
		g.recorder.RecordDecision(decision.Outcome.String())
	}
	return decision
}

// Element evaluates an element requirement: Show or Hide, never a redirect.
// Anonymous callers and callers with pending permission data see Hide. A
// module-only requirement defaults to read-level module access.
func (g *Gate) Element(ctx context.Context, id shared.Identity, req Requirement) Visibility {
	switch g.decide(ctx, id, req).Outcome {
	case OutcomeAllow:
		return Show
	default:
		return Hide
	}
}

func (g *Gate) decide(ctx context.Context, id shared.Identity, req Requirement) Decision {
	if !id.Authenticated {
		return Decision{Outcome: OutcomeLogin, Reason: "authentication required"}
	}
	if g.engine.Loading() {
		return Decision{Outcome: OutcomeLoading, Reason: "permissions are still loading"}
	}
	if req.Empty() {
		return Decision{Outcome: OutcomeAllow}
	}

	switch {
	case req.Permission != "":
		if g.engine.HasPermission(ctx, id, req.Permission) {
			return Decision{Outcome: OutcomeAllow}
		}
		return Decision{Outcome: OutcomeDeny, Reason: g.missingPermission(req.Permission)}

	case len(req.Permissions) > 0:
		if req.RequireAll {
			if g.engine.HasAllPermissions(ctx, id, req.Permissions) {
				return Decision{Outcome: OutcomeAllow}
			}
			return Decision{
				Outcome: OutcomeDeny,
				Reason:  fmt.Sprintf("all of the permissions %s are required", quoteList(req.Permissions)),
			}
		}
		if g.engine.HasAnyPermission(ctx, id, req.Permissions) {
			return Decision{Outcome: OutcomeAllow}
		}
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  fmt.Sprintf("one of the permissions %s is required", quoteList(req.Permissions)),
		}

	default:
		if g.engine.CanAccess(ctx, id, req.Module, req.Action) {
			return Decision{Outcome: OutcomeAllow}
		}
		if req.Action != "" {
			return Decision{
				Outcome: OutcomeDeny,
				Reason:  g.missingPermission(catalog.PermissionName(req.Module, req.Action)),
			}
		}
		return Decision{
			Outcome: OutcomeDeny,
			Reason:  fmt.Sprintf("no access to the %s module", g.titler.String(req.Module)),
		}
	}
}

func (g *Gate) missingPermission(name string) string {
	return fmt.Sprintf("missing permission %q (%s module)", name, g.titler.String(catalog.Module(name)))
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return strings.Join(quoted, ", ")
}

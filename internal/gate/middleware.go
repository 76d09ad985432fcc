package gate

import (
	"log/slog"
	"net/http"

	"github.com/akademos/akademos/internal/platform/httpx"
	"github.com/akademos/akademos/internal/shared"
)

// loadingRetryAfter is the Retry-After hint, in seconds, returned while the
// catalog is still loading.
const loadingRetryAfter = 2

// Middleware wires route-guard decisions into chi handler chains.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequirePermission guards a route behind a single permission.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return m.require(Requirement{Permission: name})
}

// RequireAny guards a route behind at least one of the named permissions.
func (m Middleware) RequireAny(names ...string) func(http.Handler) http.Handler {
	return m.require(Requirement{Permissions: names})
}

// RequireAll guards a route behind every named permission.
func (m Middleware) RequireAll(names ...string) func(http.Handler) http.Handler {
	return m.require(Requirement{Permissions: names, RequireAll: true})
}

// RequireModule guards a route behind module access. An empty action demands
// read-level access: any permission under the module.
func (m Middleware) RequireModule(module, action string) func(http.Handler) http.Handler {
	return m.require(Requirement{Module: module, Action: action})
}

// RequireAuthenticated guards a route behind a live session only.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.require(Requirement{})
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.IdentityFromContext(r.Context())
			decision := m.Gate.Decide(r.Context(), id, req)
			switch decision.Outcome {
			case OutcomeAllow:
				next.ServeHTTP(w, r)
			case OutcomeLogin:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", decision.Reason)
			case OutcomeLoading:
				httpx.Retry(w, loadingRetryAfter, "Permissions Loading", decision.Reason)
			default:
				if m.Logger != nil {
					m.Logger.Info("route denied",
						slog.Int64("user_id", id.UserID),
						slog.String("path", r.URL.Path),
						slog.String("reason", decision.Reason))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
			}
		})
	}
}

package shared

import "context"

// Identity describes the authenticated actor for a request. The zero value
// is an anonymous caller.
type Identity struct {
	UserID        int64
	Role          string
	Authenticated bool
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// IdentityFromContext returns the identity of the current session, or an
// anonymous identity when no session is attached.
func IdentityFromContext(ctx context.Context) Identity {
	return SessionFromContext(ctx).Identity()
}

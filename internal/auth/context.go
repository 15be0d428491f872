package auth

import "context"

// Context carries the authenticated identity and tenant scope resolved for a
// request. It is injected by RequireAuth and passed explicitly into every
// engine and loader call, so nothing below the HTTP layer reaches into
// request-scoped globals.
type Context struct {
	UserID         string
	OrganizationID string
}

type contextKey struct{}

// NewContext returns a copy of parent carrying the auth context.
func NewContext(parent context.Context, ac Context) context.Context {
	return context.WithValue(parent, contextKey{}, ac)
}

// FromContext extracts the auth context set by RequireAuth.
func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

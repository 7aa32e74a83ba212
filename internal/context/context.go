package context

import (
	"context"
	"time"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// PrincipalKey is the context key for the authenticated Principal.
const PrincipalKey ContextKey = "principal"

// Principal is the identity attached to a request by the auth gate.
type Principal struct {
	UserID int64
	Email  string
	// Token is the raw bearer token, kept so logout and password reset can revoke it.
	Token     string
	ExpiresAt time.Time
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// ExtractPrincipal returns the principal attached to ctx, if any.
func ExtractPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (int64, bool) {
	p, ok := ExtractPrincipal(ctx)
	return p.UserID, ok
}

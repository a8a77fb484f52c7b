package auth

import "context"

// Identity is the authenticated caller as seen by handlers and services:
// the user ID plus the admin capability flag carried in the access token.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const identityContextKey contextKey = "auth_identity"

// NewContextWithIdentity returns a child context carrying the identity.
func NewContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the caller identity set by the JWT
// middleware. The second return value is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

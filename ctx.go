package authclient

import (
	"context"
)

var identityCtxKey = &contextKey{"identity"}
var businessCtxKey = &contextKey{"business_id"}

type contextKey struct {
	name string
}

// WithIdentity sets the authenticated Identity in the given context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*Identity)
	return raw, ok
}

// WithBusinessID scopes the context to the active business.
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessCtxKey, businessID)
}

// BusinessIDFromContext extracts the active business id from the context.
func BusinessIDFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(businessCtxKey).(string)
	return raw, ok
}

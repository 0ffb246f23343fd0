package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cryptohelms/backend/token"
)

// Context key type to avoid collisions
type contextKey string

// IdentityKey is the context key for the verified token identity
const IdentityKey contextKey = "identity"

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithIdentity adds a verified identity to the context
func WithIdentity(ctx context.Context, identity *token.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentityFromContext retrieves the verified identity, or nil
func GetIdentityFromContext(ctx context.Context) *token.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*token.Identity); ok {
			return identity
		}
	}
	return nil
}

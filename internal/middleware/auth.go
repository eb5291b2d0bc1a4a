package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/ducats/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// OwnerKey is the context key for the authenticated token owner.
const OwnerKey contextKey = "owner"

// GetOwner extracts the token owner from the context.
// Returns empty string if not found.
func GetOwner(ctx context.Context) string {
	owner, _ := ctx.Value(OwnerKey).(string)
	return owner
}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}

// RequireAuth returns an interceptor that requires a valid bearer token on
// every request and stores its owner in the request context.
func RequireAuth(tokens *auth.TokenManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithOwner(ctx, claims.Owner), req)
		}
	}
}

// Package middleware provides HTTP middlewares for authentication, logging
// and metrics.
package middleware

import (
	"context"
	"net/http"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/common"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticator verifies the credential carried by a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.Claims, error)
}

// BearerAuth is a middleware that enforces bearer token authentication.
//
// The token is looked up in the Authorization header, the token cookie and
// the token query parameter, in that order. On success the token subject is
// stored in the request context, so it can be used downstream as the
// authenticated user ID. Failures are answered with the status of the
// credential error (401, 400 or 403).
func BearerAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r)
			if err != nil {
				status := common.StatusCode(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				http.Error(w, err.Error(), status)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.ID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

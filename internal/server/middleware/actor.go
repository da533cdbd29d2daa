// Package middleware holds the HTTP middleware wrapped around the API mux.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// actorIDKey is the context key for storing the authenticated actor id.
const actorIDKey ContextKey = "actorID"

// TokenValidator is an interface for validating actor tokens.
// This allows the middleware to work with any token service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (ActorGetter, error)
}

// ActorGetter is an interface for extracting the actor id from token claims.
type ActorGetter interface {
	GetActorID() string
}

// ActorMiddleware identifies the caller from a Bearer token. Requests without
// an Authorization header pass through anonymously; a header that does not
// carry a valid token is rejected with 401.
func ActorMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := WithActorID(r.Context(), claims.GetActorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"error":   "unauthorized",
		"message": "invalid or expired actor token",
	})
}

// WithActorID returns ctx carrying actorID.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorID returns the authenticated actor id, if any.
func ActorID(r *http.Request) (string, bool) {
	actorID, ok := r.Context().Value(actorIDKey).(string)
	return actorID, ok && actorID != ""
}

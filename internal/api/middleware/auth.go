package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/edvin/borgdesk/internal/api/response"
	"github.com/edvin/borgdesk/internal/core"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth returns middleware that authenticates requests. Browser sessions send
// a Bearer token, automation sends X-API-Key. Either way the resolved user ID
// lands in the request context.
func Auth(auth *core.AuthService, keys *core.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				apiKey, err := keys.Validate(r.Context(), key)
				if err != nil {
					response.WriteError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), apiKey.UserID)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing credentials")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				response.WriteError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), claims.Sub)))
		})
	}
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID is a test helper that injects a user identity.
func WithUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(withUserID(r.Context(), userID))
}

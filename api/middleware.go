package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/orbit/expense-engine/auth"
	"github.com/orbit/expense-engine/workflow"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "principal"

// GetPrincipal extracts the authenticated principal from the context.
// The second return is false on unauthenticated requests.
func GetPrincipal(ctx context.Context) (workflow.Principal, bool) {
	p, ok := ctx.Value(principalKey).(workflow.Principal)
	return p, ok
}

// RequireAuth validates the Bearer token and stores the principal it carries
// in the request context. Requests without a valid token get 401.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization token required", nil)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "Invalid authorization header", nil)
				return
			}

			principal, err := jwtManager.Validate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

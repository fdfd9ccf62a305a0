// ABOUTME: HTTP middleware for JWT authentication on API and websocket endpoints
// ABOUTME: Extracts the session token from the Authorization header or ?token= query

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/huddle-gateway/internal/store"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// TokenFromRequest returns the bearer token, falling back to the "token" query
// parameter because browsers cannot set headers on websocket upgrades.
func TokenFromRequest(r *http.Request) (string, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg == "" {
		return token, ""
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, ""
	}
	return "", errMsg
}

// HTTPAuthMiddleware rejects requests without a valid session token and adds
// the AuthContext to the request context.
func HTTPAuthMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := TokenFromRequest(r)
			if errMsg != "" {
				writeAuthError(w, errMsg, http.StatusUnauthorized)
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeAuthError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithAuth(r.Context(), &AuthContext{Username: user.Username, Role: user.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaffHTTP requires the staff role. Must be used after HTTPAuthMiddleware.
func RequireStaffHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			if !authCtx.IsStaff() {
				writeAuthError(w, "staff role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, `{"error":"`+msg+`"}`, status)
}

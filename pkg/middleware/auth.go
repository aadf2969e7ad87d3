package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	roleKey   contextKeyType = "role"
)

// Identity reports who the dashboard is signed in as. The session manager
// satisfies it through a small adapter in the HTTP layer.
type Identity interface {
	// Loading is true until the persisted session has been restored.
	Loading() bool
	// Principal returns the signed-in user's id and role, or ok=false when
	// nobody is signed in.
	Principal() (userID, role string, ok bool)
}

// RequireSession guards protected views. While the session is still being
// restored it answers 503; when nobody is signed in it redirects to
// entryRoute. Otherwise the user id and role are put on the request context.
func RequireSession(id Identity, entryRoute string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id.Loading() {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "session is loading")
				return
			}

			userID, role, ok := id.Principal()
			if !ok {
				http.Redirect(w, r, entryRoute, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			ctx = logger.WithUserID(ctx, userID)
			ctx = logger.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole middleware checks that the signed-in user has one of roles.
// It must run after RequireSession.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := roleSet[role]; !ok {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext extracts the user role from the request context.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

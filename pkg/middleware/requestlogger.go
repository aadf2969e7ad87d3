package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation id, trace ids and the signed-in user. Handlers fetch it with
// logger.FromContext. The user also tags the request span.
//
// The user comes from the guard's context keys when present, otherwise from
// id (which may be nil). Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger, id Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, role := UserIDFromContext(ctx), RoleFromContext(ctx)
			if userID == "" && id != nil && !id.Loading() {
				userID, role, _ = id.Principal()
			}
			if userID != "" {
				ctx = logger.WithUserID(ctx, userID)
				trace.SpanFromContext(ctx).SetAttributes(
					attribute.String("crs.user_id", userID),
					attribute.String("crs.role", role),
				)
			}
			if role != "" {
				ctx = logger.WithRole(ctx, role)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

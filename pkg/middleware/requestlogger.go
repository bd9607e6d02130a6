package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/shopsync/pkg/logger"
)

// UserResolver returns the user id behind a request, or "" when anonymous.
type UserResolver func(r *http.Request) string

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, session_id, user_id, trace_id and span_id. Mount it after
// RequestLogging and Tracing so those fields are present.
func RequestLogger(base *slog.Logger, resolve UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if resolve != nil {
				if userID := resolve(r); userID != "" {
					ctx = logger.WithUserID(ctx, userID)
				}
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

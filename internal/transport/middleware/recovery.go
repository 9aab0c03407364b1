package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/receiptlens/pkg/logger"
)

// RecoveryMiddleware provides panic recovery with detailed logging
func RecoveryMiddleware(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.FromOr(r.Context(), lg).Error("panic recovered",
						"error", err,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"code":500,"message":"Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

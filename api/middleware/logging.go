package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

// quietPaths are polled by the platform and only logged when they fail.
var quietPaths = []string{"/health/", "/metrics"}

// Logging writes one line per request with the matched route, status, size
// and latency. Server errors are logged at warn level.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < http.StatusInternalServerError && isQuiet(r.URL.Path) {
				return
			}

			fields := map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				fields["route"] = rctx.RoutePattern()
			}
			ctx = logg.WithFields(ctx, fields)
			if status >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.failed")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

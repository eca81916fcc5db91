package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
)

// Logging writes one access entry per request and feeds the HTTP metrics.
// 5xx responses log at error level and 4xx at warn.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newResponseRecorder(w, false)

			next.ServeHTTP(rec, r)

			route := matchedRoute(r)
			status := rec.Status()
			elapsed := time.Since(start)
			httpMetrics.ObserveRequest(r.Method, route, status, elapsed)

			if logg == nil {
				return
			}
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      status,
				"bytes":       rec.written,
				"duration_ms": elapsed.Milliseconds(),
				"remote_ip":   clientIP(r),
			})
			switch {
			case status >= http.StatusInternalServerError:
				logg.Error(ctx, "request.complete", nil)
			case status >= http.StatusBadRequest:
				logg.Warn(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

// matchedRoute is empty for requests chi could not route.
func matchedRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

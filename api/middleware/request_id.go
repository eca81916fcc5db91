package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/persiamall/storefront/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids from proxies are trusted only when they look like an id.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// RequestID propagates or mints the request id, echoes it on the response
// and tags every log entry written for the request.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), reqID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

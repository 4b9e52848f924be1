package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLength caps caller supplied ids before they reach the logs.
const maxRequestIDLength = 64

// requestLogger tags each request with an id, then logs and counts it once the
// route has been resolved.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = logging.NewRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		elapsed := time.Since(start)
		metrics.RecordHTTP(route, r.Method, strconv.Itoa(status), elapsed)

		event := logging.Ctx(r.Context()).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

// routePattern keeps metric labels bounded by using the matched pattern
// instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

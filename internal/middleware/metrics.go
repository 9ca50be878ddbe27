package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/templui/evidencekit/internal/metrics"
)

// unmatchedRoute labels requests that hit no registered pattern, keeping
// label cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics records request counts and latency per method and route pattern.
// It must wrap the mux so that r.Pattern is populated after routing.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrap(w)

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

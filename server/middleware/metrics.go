package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/viewkit/observability"
)

// Metrics records request counts, durations and in-flight requests. The
// route label is the path without its query, so list views with different
// descriptors share one series.
func Metrics(m *observability.RequestMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			m.RecordRequestStart(ctx)
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			m.RecordRequestEnd(ctx, r.URL.Path, r.Method, sw.status, time.Since(start))
		})
	}
}

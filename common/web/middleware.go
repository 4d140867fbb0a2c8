package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
)

// MetricsMiddleware records request counts and latency for every handler
// except the metrics endpoint itself.
func MetricsMiddleware(next http.Handler, m *metrics.HTTPMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path,
			strconv.Itoa(recorder.statusCode), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// Package metrics provides Prometheus metrics for the build pipeline and HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforme_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildforme_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforme_steps_total",
			Help: "Build steps that reached a terminal status, by action kind",
		},
		[]string{"kind", "status"},
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforme_sessions_total",
			Help: "Sandbox session state transitions",
		},
		[]string{"state"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildforme_active_sessions",
			Help: "Sandbox sessions not yet closed",
		},
	)

	sandboxCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforme_sandbox_commands_total",
			Help: "Commands spawned inside the sandbox",
		},
		[]string{"outcome"},
	)

	// Generation metrics
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforme_generation_requests_total",
			Help: "Requests sent to the text-generation service",
		},
		[]string{"operation", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildforme_generation_duration_seconds",
			Help:    "Latency of text-generation requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records metrics for one HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStep records a step reaching a terminal status.
func RecordStep(kind, status string) {
	stepsTotal.WithLabelValues(kind, status).Inc()
}

// RecordSessionState records a session entering state.
func RecordSessionState(state string) {
	sessionsTotal.WithLabelValues(state).Inc()
}

// SessionOpened increments the live session gauge.
func SessionOpened() { activeSessions.Inc() }

// SessionClosed decrements the live session gauge.
func SessionClosed() { activeSessions.Dec() }

// RecordSandboxCommand records a sandbox command outcome.
func RecordSandboxCommand(success bool) {
	sandboxCommandsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordGeneration records one generation call.
func RecordGeneration(operation string, duration time.Duration, err error) {
	generationRequestsTotal.WithLabelValues(operation, outcome(err == nil)).Inc()
	generationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics. The path
// label is the matched chi route pattern so ids never explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}

// Package metrics holds the Prometheus collectors of the service. All of them
// live on the default registry exposed at /metrics.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicdesk_http_requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civicdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicdesk_submissions_total",
			Help: "Grievance submissions by intake mode and outcome.",
		},
		[]string{"mode", "result"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicdesk_transitions_total",
			Help: "Lifecycle transitions by action and outcome.",
		},
		[]string{"action", "result"},
	)

	// Classifier calls are slow (speech recognition); buckets reach past the default timeout.
	classifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civicdesk_classifier_request_duration_seconds",
			Help:    "Latency of calls to the classification service.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"mode", "result"},
	)
)

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func ObserveSubmission(mode string, err error) {
	submissionsTotal.WithLabelValues(mode, result(err)).Inc()
}

func ObserveTransition(action string, err error) {
	transitionsTotal.WithLabelValues(action, result(err)).Inc()
}

func ObserveClassifier(mode string, started time.Time, err error) {
	classifierDuration.WithLabelValues(mode, result(err)).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RouteFunc resolves the low-cardinality route label for a finished request.
type RouteFunc func(r *http.Request) string

// Middleware records request count and latency. route is evaluated after the
// handler ran so router patterns (e.g. chi's) are available.
func Middleware(route RouteFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			label := r.URL.Path
			if route != nil {
				if resolved := route(r); resolved != "" {
					label = resolved
				}
			}
			httpRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Websocket upgrades type-assert http.Hijacker on the writer they receive.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil {
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

func (rw *statusRecorder) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

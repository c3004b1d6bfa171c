package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP level Prometheus collectors for the service.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// slotConflictsTotal counts booking attempts rejected because another live
// meeting request already held the slot. The responder increments it when it
// maps ErrSlotTaken; NewMetrics attaches it to the registry.
var slotConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "intake",
	Subsystem: "booking",
	Name:      "slot_conflicts_total",
	Help:      "Number of meeting requests rejected because the slot was already booked.",
})

// NewMetrics constructs the HTTP collectors and registers them with the
// provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests processed, labelled by method, path, and status code.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, labelled by method and path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsTotal, m.requestDuration, slotConflictsTotal)
	}
	return m
}

// Middleware records request counts and latencies around the wrapped handler.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			path := routePattern(r.URL.Path)
			m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern collapses path parameters so metric cardinality stays bounded.
func routePattern(path string) string {
	switch {
	case path == "/login", path == "/logout", path == "/availability",
		path == "/requests", path == "/requests/ask", path == "/requests/meet",
		path == "/users", path == "/staff", path == "/healthz", path == "/metrics":
		return path
	case len(path) > len("/requests/") && path[:len("/requests/")] == "/requests/":
		return "/requests/{id}"
	case len(path) > len("/users/") && path[:len("/users/")] == "/users/":
		return "/users/{id}"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

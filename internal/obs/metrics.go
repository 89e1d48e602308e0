package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	serviceReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})
)

// Auth metrics.
var (
	authLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	authRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh token redemptions by result.",
		},
		[]string{"result"},
	)

	authGuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_guard_decisions_total",
			Help: "Access guard outcomes for protected routes.",
		},
		[]string{"result"},
	)

	hashInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auth_hash_inflight",
		Help: "Password hash operations currently running.",
	})

	hashWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auth_hash_wait_seconds",
		Help:    "Time spent waiting for a password hashing worker.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
)

var (
	routesMu sync.RWMutex
	routes   = map[string]struct{}{}
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, serviceReady,
		authLoginsTotal, authRefreshTotal, authGuardDecisions, hashInFlight, hashWait,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RegisterRoute marks path as a known route so it is reported verbatim.
func RegisterRoute(path string) {
	routesMu.Lock()
	routes[path] = struct{}{}
	routesMu.Unlock()
}

// CanonicalPath maps a request path to a bounded label value. Unknown paths
// collapse into "other" so scanners cannot blow up label cardinality.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	path = strings.TrimSuffix(path, "/")
	routesMu.RLock()
	_, ok := routes[path]
	routesMu.RUnlock()
	if ok {
		return path
	}
	return "other"
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// SetReady publishes the readiness probe result.
func SetReady(ok bool) {
	if ok {
		serviceReady.Set(1)
		return
	}
	serviceReady.Set(0)
}

func RecordLogin(result string) { authLoginsTotal.WithLabelValues(result).Inc() }
func RecordRefresh(result string) { authRefreshTotal.WithLabelValues(result).Inc() }
func RecordGuardDecision(result string) { authGuardDecisions.WithLabelValues(result).Inc() }

func HashStarted() { hashInFlight.Inc() }
func HashFinished() { hashInFlight.Dec() }

func ObserveHashWait(d time.Duration) { hashWait.Observe(d.Seconds()) }

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Package metrics defines the Prometheus instrumentation for the service:
// HTTP traffic, upstream data fetches, orientation snapshot rebuilds, and
// SSE stream activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l1viz_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "l1viz_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l1viz_fetches_total",
			Help: "Upstream data fetches by source and result.",
		},
		[]string{"source", "result"},
	)

	fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "l1viz_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	datasetAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "l1viz_dataset_age_seconds",
			Help: "Age of the most recent dataset per source.",
		},
		[]string{"source"},
	)

	snapshotRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "l1viz_snapshot_rebuilds_total",
			Help: "Total orientation snapshot rebuilds.",
		},
	)

	snapshotBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "l1viz_snapshot_build_seconds",
			Help:    "Orientation snapshot build duration in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	stationsVisible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "l1viz_stations_visible",
			Help: "Ground stations on the sunlit hemisphere in the current snapshot.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l1viz_stream_connections_total",
			Help: "SSE stream connect/disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "l1viz_streams_active",
			Help: "Currently connected SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "l1viz_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "l1viz_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l1viz_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "l1viz_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		fetchesTotal,
		fetchDurationSeconds,
		datasetAgeSeconds,
		snapshotRebuildsTotal,
		snapshotBuildSeconds,
		stationsVisible,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		rateLimitedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the exact paths the server registers. Anything else is
// collapsed so scanner traffic can't blow up label cardinality.
var knownRoutes = map[string]bool{
	"/":                          true,
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/orientation":        true,
	"/api/v1/orientation/at":     true,
	"/api/v1/stations":           true,
	"/api/v1/imagery":            true,
	"/api/v1/spacecraft":         true,
	"/api/v1/projection":         true,
	"/api/v1/stream/orientation": true,
}

// frontend assets served from the embedded filesystem share one label.
var assetRoutes = map[string]bool{
	"/index.html": true,
	"/app.js":     true,
	"/styles.css": true,
}

// normalizeRoute maps a request path to a bounded metrics label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if assetRoutes[path] {
		return "asset"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE streaming keeps working
// behind the middleware chain.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// RecordFetch records one upstream fetch attempt.
func RecordFetch(source string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	fetchesTotal.WithLabelValues(source, result).Inc()
	fetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// SetDatasetAge publishes the age in seconds of a source's latest dataset.
func SetDatasetAge(source string, seconds float64) {
	datasetAgeSeconds.WithLabelValues(source).Set(seconds)
}

// RecordSnapshotBuild records one orientation snapshot rebuild.
func RecordSnapshotBuild(duration time.Duration, visibleStations int) {
	snapshotRebuildsTotal.Inc()
	snapshotBuildSeconds.Observe(duration.Seconds())
	stationsVisible.Set(float64(visibleStations))
}

// IncStreamConnections counts a stream connect or disconnect event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE data message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes counts bytes written to a stream.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// IncRateLimited counts a request rejected by the rate limiter.
func IncRateLimited() { rateLimitedTotal.Inc() }

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
			Name: "isstrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	feedAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstrack_feed_age_seconds",
			Help: "Age of the current trajectory document in seconds.",
		},
	)

	feedStateVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstrack_feed_state_vectors",
			Help: "Number of state vectors in the current trajectory document.",
		},
	)

	feedFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_feed_fetch_total",
			Help: "Total number of upstream feed fetches by result.",
		},
		[]string{"result"},
	)

	geocodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrack_geocode_total",
			Help: "Total number of reverse-geocode lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(feedAgeSeconds)
	prometheus.MustRegister(feedStateVectors)
	prometheus.MustRegister(feedFetchTotal)
	prometheus.MustRegister(geocodeTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetFeedAge records the age of the current document in seconds.
func SetFeedAge(seconds float64) {
	feedAgeSeconds.Set(seconds)
}

// SetFeedStateVectors records the size of the current document.
func SetFeedStateVectors(n int) {
	feedStateVectors.Set(float64(n))
}

// IncFeedFetch counts one feed fetch with the given result ("success",
// "fetch_error", or "parse_error").
func IncFeedFetch(result string) {
	feedFetchTotal.WithLabelValues(result).Inc()
}

// IncGeocode counts one reverse-geocode lookup with the given result
// ("found", "no_locality", or "error").
func IncGeocode(result string) {
	geocodeTotal.WithLabelValues(result).Inc()
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

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}

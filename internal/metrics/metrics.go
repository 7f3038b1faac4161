// Package metrics exposes Prometheus collectors for the corpus builder.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	poemsTotal                 *prometheus.CounterVec
	poetsTotal                 *prometheus.CounterVec
	countMismatchTotal         prometheus.Counter
	batchFlushesTotal          *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poesie_fetches_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poesie_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		poemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poesie_poems_total",
				Help: "Poem pages processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		poetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poesie_poets_total",
				Help: "Poets processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		countMismatchTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "poesie_count_mismatch_total",
				Help: "Poets whose listing header disagrees with the poem links found.",
			},
		)

		batchFlushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poesie_batch_flushes_total",
				Help: "Batches written to the store, labeled by table and mode.",
			},
			[]string{"table", "mode"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poesie_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch and the bytes it returned.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObservePoem counts one poem page outcome ("stored", "parse_error", "fetch_error").
func ObservePoem(status string) {
	Init()
	poemsTotal.WithLabelValues(status).Inc()
}

// ObservePoet counts one poet outcome ("done", "skipped").
func ObservePoet(status string) {
	Init()
	poetsTotal.WithLabelValues(status).Inc()
}

// ObserveCountMismatch counts a poet whose header count disagrees.
func ObserveCountMismatch() {
	Init()
	countMismatchTotal.Inc()
}

// ObserveFlush counts one batch write ("replace" or "append").
func ObserveFlush(table, mode string) {
	Init()
	batchFlushesTotal.WithLabelValues(table, mode).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request served by the metrics endpoint.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Package metrics exposes Prometheus collectors for notesaver.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal             *prometheus.CounterVec
	artifactsTotal         *prometheus.CounterVec
	fetchesTotal           *prometheus.CounterVec
	fetchBytesTotal        *prometheus.CounterVec
	fetchDurationSeconds   *prometheus.HistogramVec
	activeWorkers          prometheus.Gauge
	queuedTasks            prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec
	batchesTotal           prometheus.Counter
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times and is
// invoked lazily by every observer.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesaver_tasks_total",
				Help: "Total number of save tasks concluded, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		artifactsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesaver_artifacts_total",
				Help: "Total number of artifacts written, labeled by kind.",
			},
			[]string{"kind"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesaver_fetches_total",
				Help: "Total number of HTTP fetches, labeled by site and status code.",
			},
			[]string{"site", "code"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesaver_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notesaver_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"site"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "notesaver_active_workers",
				Help: "Number of pool workers currently executing a task.",
			},
		)

		queuedTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "notesaver_queued_tasks",
				Help: "Number of tasks waiting in the pool queue.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notesaver_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		batchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "notesaver_batches_total",
				Help: "Total number of batches run to completion.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesaver_http_requests_total",
				Help: "Total number of operator HTTP requests, labeled by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notesaver_http_request_duration_seconds",
				Help:    "Histogram of operator HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveTask counts a concluded task ("success" or "failure").
func ObserveTask(outcome string) {
	Init()
	tasksTotal.WithLabelValues(outcome).Inc()
}

// ObserveArtifact counts a written artifact of the given kind.
func ObserveArtifact(kind string) {
	Init()
	artifactsTotal.WithLabelValues(kind).Inc()
}

// ObserveFetch records one HTTP fetch. code is 0 when no response arrived.
func ObserveFetch(rawURL string, code int, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, strconv.Itoa(code)).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveBatch counts a finished batch.
func ObserveBatch() {
	Init()
	batchesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// SetQueuedTasks publishes the current queue depth.
func SetQueuedTasks(n int) {
	Init()
	queuedTasks.Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request served by the operator API.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

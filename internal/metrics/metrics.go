package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Engagement metrics
	TogglesTotal      *prometheus.CounterVec
	ViewsLoggedTotal  *prometheus.CounterVec
	CounterDriftTotal *prometheus.CounterVec

	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec

	// Cache and rate limiting
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec

	// Realtime
	NotificationsPushedTotal *prometheus.CounterVec
	WebsocketConnections     prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 30},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_requests",
					Help: "Requests currently being served",
				},
				[]string{"method", "path"},
			),
			TogglesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vidshare_toggles_total",
					Help: "Like and subscription toggles by resulting state",
				},
				[]string{"kind", "state"},
			),
			ViewsLoggedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vidshare_views_logged_total",
					Help: "View log calls, split by whether the view counter moved",
				},
				[]string{"identity", "counted"},
			),
			CounterDriftTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vidshare_counter_drift_total",
					Help: "Rows whose denormalized counter disagreed with its join rows",
				},
				[]string{"counter"},
			),
			UploadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vidshare_uploads_total",
					Help: "Object storage uploads",
				},
				[]string{"kind", "status"},
			),
			UploadDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "vidshare_upload_duration_seconds",
					Help:    "Object storage upload latency",
					Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"kind"},
			),
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Cache hits",
				},
				[]string{"cache"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Cache misses",
				},
				[]string{"cache"},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by a rate limiter",
				},
				[]string{"limiter", "method"},
			),
			NotificationsPushedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vidshare_notifications_pushed_total",
					Help: "Notifications delivered over websocket",
				},
				[]string{"type"},
			),
			WebsocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "vidshare_websocket_connections",
					Help: "Open notification websocket connections",
				},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Internal errors by type",
				},
				[]string{"type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the metrics singleton, registering it on first use.
func Get() *Metrics {
	return Initialize()
}

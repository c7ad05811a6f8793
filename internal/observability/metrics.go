package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeToggles counts completed toggles by resulting state or failure.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_like_toggles_total",
		Help: "Total number of like toggles by result",
	}, []string{"result"})

	// LikeConflicts counts duplicate inserts recovered as already-liked.
	LikeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strayland_like_conflicts_total",
		Help: "Total number of like insert conflicts recovered by re-checking membership",
	})

	// StoreErrors counts failed store calls by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_store_errors_total",
		Help: "Total number of relational store errors by operation",
	}, []string{"op"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheOperations counts cache-aside lookups by outcome.
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_cache_operations_total",
		Help: "Total cache operations by operation and result",
	}, []string{"op", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strayland_db_query_duration_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// LLMRequests counts chat completion calls by status.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_llm_requests_total",
		Help: "Total number of language model requests by status",
	}, []string{"status"})

	// LLMRequestDuration records chat completion latency.
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "strayland_llm_request_duration_seconds",
		Help:    "Language model request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})

	// ImageUploads counts image uploads by result.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_image_uploads_total",
		Help: "Total number of image uploads by result",
	}, []string{"result"})

	// WebSocketConnections is the gauge of active feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strayland_websocket_connections",
		Help: "Number of active feed WebSocket connections",
	})

	// WebSocketEventsTotal counts broadcast events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strayland_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// Query metrics
	Queries         *prometheus.CounterVec
	QueryErrors     *prometheus.CounterVec
	AggregationTime *prometheus.HistogramVec
	StoreLatency    *prometheus.HistogramVec

	// Cache metrics
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheInvalidations prometheus.Counter
	CacheKeysDeleted   prometheus.Counter

	// Realtime metrics
	ActiveRooms      prometheus.Gauge
	ConnectedClients prometheus.Gauge
	PushesSent       *prometheus.CounterVec
	PushesFailed     prometheus.Counter
	BroadcastsIn     prometheus.Counter
	BroadcastsOut    prometheus.Counter

	// Rate limiting
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Queries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total analytics queries served",
			},
			[]string{"operation"},
		),
		QueryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_errors_total",
				Help:      "Analytics queries that failed",
			},
			[]string{"operation"},
		),
		AggregationTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_seconds",
				Help:      "Time spent aggregating metric records",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		StoreLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Metric store query latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend"},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Aggregate cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Aggregate cache misses",
			},
		),
		CacheInvalidations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Tenant cache invalidations",
			},
		),
		CacheKeysDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_keys_deleted_total",
				Help:      "Cache keys removed by invalidation",
			},
		),

		ActiveRooms: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_rooms",
				Help:      "Rooms with at least one subscriber",
			},
		),
		ConnectedClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected_clients",
				Help:      "Live realtime connections",
			},
		),
		PushesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pushes_sent_total",
				Help:      "Snapshot and alert pushes sent to clients",
			},
			[]string{"event"},
		),
		PushesFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pushes_failed_total",
				Help:      "Pushes that failed to send",
			},
		),
		BroadcastsIn: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_received_total",
				Help:      "Events received from the shared broadcast channel",
			},
		),
		BroadcastsOut: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_published_total",
				Help:      "Events published to the shared broadcast channel",
			},
		),

		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records a served query and its aggregation time.
func (m *Metrics) RecordQuery(operation string, elapsed time.Duration) {
	m.Queries.WithLabelValues(operation).Inc()
	m.AggregationTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordQueryError records a failed query.
func (m *Metrics) RecordQueryError(operation string) {
	m.QueryErrors.WithLabelValues(operation).Inc()
}

// RecordStoreLatency records a metric store round-trip.
func (m *Metrics) RecordStoreLatency(backend string, elapsed time.Duration) {
	m.StoreLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// RecordCacheHit records an aggregate cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records an aggregate cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordCacheInvalidation records a tenant invalidation.
func (m *Metrics) RecordCacheInvalidation(deleted int) {
	m.CacheInvalidations.Inc()
	m.CacheKeysDeleted.Add(float64(deleted))
}

// RecordPush records a successful push to a client.
func (m *Metrics) RecordPush(event string) {
	m.PushesSent.WithLabelValues(event).Inc()
}

// RecordPushFailure records a push that could not be delivered.
func (m *Metrics) RecordPushFailure() {
	m.PushesFailed.Inc()
}

// RecordBroadcastIn records an event received from the broadcast channel.
func (m *Metrics) RecordBroadcastIn() {
	m.BroadcastsIn.Inc()
}

// RecordBroadcastOut records an event published to the broadcast channel.
func (m *Metrics) RecordBroadcastOut() {
	m.BroadcastsOut.Inc()
}

// SetActiveRooms updates the active room count.
func (m *Metrics) SetActiveRooms(n int) {
	m.ActiveRooms.Set(float64(n))
}

// SetConnectedClients updates the live connection count.
func (m *Metrics) SetConnectedClients(n int) {
	m.ConnectedClients.Set(float64(n))
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

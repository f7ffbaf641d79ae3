// Package observability provides metrics and tracing for the application.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusionforge_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusionforge_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// LayerSubmissions counts layer submissions by outcome
	// (approved, pending, rejected, validation_error, permission_error, conflict, error).
	LayerSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusionforge_layer_submissions_total",
		Help: "Total number of layer submissions by outcome",
	}, []string{"outcome"})

	// ModerationDecisions counts moderation gate decisions by mode and result.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusionforge_moderation_decisions_total",
		Help: "Total number of moderation gate decisions by mode and result",
	}, []string{"mode", "result"})

	// OrderConflictRetries counts layer-order assignment collisions that were retried.
	OrderConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fusionforge_layer_order_conflict_retries_total",
		Help: "Total number of layer order assignment collisions retried",
	})

	// EngagementEvents counts engagement events applied by type.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusionforge_engagement_events_total",
		Help: "Total number of engagement events applied by type",
	}, []string{"type"})

	// CounterRecounts counts authoritative counter recount passes.
	CounterRecounts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fusionforge_counter_recounts_total",
		Help: "Total number of authoritative counter recount passes",
	})

	// WebSocketConnectionsTotal is the gauge of active engagement stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fusionforge_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// EventBusDrops counts events dropped because a subscriber buffer was full.
	EventBusDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusionforge_event_bus_drops_total",
		Help: "Total number of events dropped due to subscriber backpressure",
	}, []string{"entity"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

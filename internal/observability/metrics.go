package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psymatch_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// LikesTotal counts like attempts by outcome (created, mutual, duplicate, error).
	LikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_likes_total",
		Help: "Total like attempts by outcome",
	}, []string{"outcome"})

	// DeckDrawsTotal counts deck draws by result (candidate, exhausted).
	DeckDrawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_deck_draws_total",
		Help: "Total deck draws by result",
	}, []string{"result"})

	// SessionEventsTotal counts conversation session lifecycle events.
	SessionEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_session_events_total",
		Help: "Conversation session lifecycle events",
	}, []string{"flow", "event"})

	// NotificationsTotal counts outbound notifications by kind and result.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_notifications_total",
		Help: "Outbound notifications by kind and result",
	}, []string{"kind", "result"})

	// UpdatesTotal counts inbound transport updates by kind.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psymatch_updates_total",
		Help: "Inbound updates by kind",
	}, []string{"kind"})

	// UpdateDuration records how long dispatching one inbound update takes.
	UpdateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psymatch_update_duration_seconds",
		Help:    "Time spent dispatching one inbound update",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

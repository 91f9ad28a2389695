package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Aggregation Metrics
var (
	// SourceFetches tracks upstream fetches by source and status
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_source_fetches_total",
			Help: "Total upstream source fetches by source (market/technical/sentiment) and status (ok/error)",
		},
		[]string{"source", "status"},
	)

	// FallbackSamples tracks synthetic samples generated when the market source was down
	FallbackSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_fallback_samples_total",
			Help: "Total synthetic market samples generated because no upstream quote was available",
		},
	)

	// CycleDuration tracks aggregation cycle duration across all symbols
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_cycle_duration_seconds",
			Help:    "Aggregation cycle duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// TrackedSymbols tracks the number of symbols the aggregator refreshes
	TrackedSymbols = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_tracked_symbols",
			Help: "Number of symbols currently refreshed each cycle",
		},
	)

	// BreakerState tracks circuit breaker state per source (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_breaker_state",
			Help: "Circuit breaker state per upstream source (0=closed, 1=open, 2=half-open)",
		},
		[]string{"source"},
	)
)

// Cache Metrics
var (
	// CacheHits tracks reads served from the record cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total record reads served from cache",
		},
	)

	// CacheMisses tracks reads that found no live cache entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total record reads that found no live cache entry",
		},
	)

	// CacheOpDuration tracks cache operation latency by operation
	CacheOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Cache operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// BusPublishFailures tracks failed publishes to the update channel
	BusPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_publish_failures_total",
			Help: "Total failed publishes to the market update channel",
		},
	)

	// BusMessagesDropped tracks subscriber-side drops when the forward buffer is full
	BusMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_messages_dropped_total",
			Help: "Total bus messages dropped because the subscriber buffer was full",
		},
	)
)

// Hub Metrics
var (
	// HubConnectionsCurrent tracks current registered viewer connections
	HubConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connections_current",
			Help: "Current number of registered viewer connections",
		},
	)

	// HubSubscriptionsCurrent tracks current symbol subscriptions across all connections
	HubSubscriptionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscriptions_current",
			Help: "Current symbol subscriptions across all connections",
		},
	)

	// EventsRouted tracks outbound events delivered to viewers by type
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_routed_total",
			Help: "Total outbound events delivered to viewers by event type",
		},
		[]string{"event"},
	)

	// SlowClientsEvicted tracks viewers evicted because their send buffer was full
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total viewer connections evicted because their send buffer was full",
		},
	)

	// HeartbeatsSent tracks heartbeat broadcasts
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_heartbeats_sent_total",
			Help: "Total heartbeat broadcasts to all viewers",
		},
	)

	// IdleDisconnects tracks viewers disconnected by the idle reaper
	IdleDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_idle_disconnects_total",
			Help: "Total viewer connections closed due to inactivity",
		},
	)
)

// WebSocket Transport Metrics
var (
	// WSConnectionsTotal tracks connection attempts by result
	WSConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WSConnectionsRejected tracks rejected connection attempts by reason
	WSConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WSPingFailures tracks ping write failures (client not responding)
	WSPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures",
		},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)

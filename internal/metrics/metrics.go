package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// NATS connection and event metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_events_received_total",
			Help: "Total number of chain events received",
		},
		[]string{"event_type"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_events_processed_total",
			Help: "Total number of chain events processed successfully",
		},
		[]string{"event_type"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_events_failed_total",
			Help: "Total number of chain events that failed processing",
		},
		[]string{"event_type", "error_type"},
	)

	EventsDiscardedStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_events_discarded_stale_total",
			Help: "Events silently discarded by the sequence gate",
		},
		[]string{"event_type"},
	)

	// ============================================
	// Fan-out metrics
	// ============================================
	FanoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_fanout_duration_seconds",
			Help:    "Duration of one fan-out leg against a destination chain",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "chain"},
	)

	FanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_fanout_failures_total",
			Help: "Fan-out legs that failed after all in-line attempts",
		},
		[]string{"kind", "chain"},
	)

	DeadLettersPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_dead_letters_pending",
		Help: "Fan-out legs currently parked for retry",
	})

	// ============================================
	// Curve metrics
	// ============================================
	CurveProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchpad_curve_progress",
			Help: "Fraction of the curve supply issued per launch/chain",
		},
		[]string{"launch_id", "chain"},
	)

	MigrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "launchpad_migrations_total",
		Help: "Completed curve-to-DEX migrations",
	})

	// ============================================
	// Security metrics
	// ============================================
	UnauthorizedCallers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_unauthorized_callers_total",
			Help: "Callbacks rejected by the caller allow-list",
		},
		[]string{"chain"},
	)

	// ============================================
	// WebSocket metrics
	// ============================================
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_ws_connections",
		Help: "Active price feed WebSocket connections",
	})
)

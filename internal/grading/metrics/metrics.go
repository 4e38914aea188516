package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsGraded tracks graded submissions by outcome
	SubmissionsGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_submissions_graded_total",
			Help: "Total number of submissions graded",
		},
		[]string{"status"},
	)

	// ProviderCallsTotal tracks external provider calls
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_provider_calls_total",
			Help: "Total number of external provider calls",
		},
		[]string{"service", "operation"},
	)

	// ProviderErrorsTotal tracks classified provider errors
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_provider_errors_total",
			Help: "Total number of provider errors by category",
		},
		[]string{"service", "category"},
	)

	// FallbackUsedTotal tracks degraded fallback activations
	FallbackUsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grader_fallback_used_total",
			Help: "Total number of fallback activations",
		},
		[]string{"operation"},
	)

	// BreakerState exports circuit breaker state (0=closed, 1=open, 2=half_open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grader_circuit_breaker_state",
			Help: "Circuit breaker state per service (0=closed, 1=open, 2=half_open)",
		},
		[]string{"service"},
	)

	// ValidationConfidence tracks the confidence distribution of validated scores
	ValidationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grader_validation_confidence",
			Help:    "Confidence of validated scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// QueueDepth tracks the number of pending submissions
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grader_queue_depth",
			Help: "Number of submissions waiting to be graded",
		},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grader_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)

// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ServiceHealth contains health metrics for one external dependency.
type ServiceHealth struct {
	Service      string       `json:"service"`
	Status       SystemStatus `json:"status"`
	BreakerState string       `json:"breaker_state"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus     SystemStatus             `json:"system_status"`
	Services         map[string]ServiceHealth `json:"services"`
	QueueDepth       int64                    `json:"queue_depth"`
	DeadLetterCount  int64                    `json:"dead_letter_count"`
	StorageHealthy   bool                     `json:"storage_healthy"`
	TotalErrors      int                      `json:"total_errors"`
	ErrorsByCategory map[string]int           `json:"errors_by_category"`
}

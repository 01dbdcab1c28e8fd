package core

import "time"

// Metric type names recorded against performance_metrics (spec §6
// "Persisted state layout").
const (
	MetricSwapDowntimeMillis    = "swap_downtime_ms"
	MetricSwapDurationSeconds   = "swap_duration_s"
	MetricDeploymentDuration    = "deployment_duration_s"
	MetricValidationDurationSec = "validation_duration_s"
)

// PerformanceMetric is one recorded measurement tied to an entity,
// deployment, or swap.
type PerformanceMetric struct {
	ID           string    `json:"id"`
	EntityID     *string   `json:"entity_id,omitempty"`
	DeploymentID *string   `json:"deployment_id,omitempty"`
	SwapID       *string   `json:"swap_id,omitempty"`
	MetricType   string    `json:"metric_type"`
	Value        float64   `json:"value"`
	RecordedAt   time.Time `json:"recorded_at"`
}

package core

import "time"

// SwapType is the trigger/category of a hot-swap (spec §3).
type SwapType string

const (
	SwapTypeManual    SwapType = "manual"
	SwapTypeScheduled SwapType = "scheduled"
	SwapTypeAutomatic SwapType = "automatic"
	SwapTypeEmergency SwapType = "emergency"
	SwapTypeRollback  SwapType = "rollback"
)

// SwapStatus is a swap row's lifecycle state (spec §3).
type SwapStatus string

const (
	SwapStatusInitiated  SwapStatus = "initiated"
	SwapStatusValidating SwapStatus = "validating"
	SwapStatusInProgress SwapStatus = "in_progress"
	SwapStatusCompleted  SwapStatus = "completed"
	SwapStatusFailed     SwapStatus = "failed"
	SwapStatusRolledBack SwapStatus = "rolled_back"
)

// Swap is an atomic transition from a source entity to a target entity
// (spec §3).
type Swap struct {
	ID               string  `json:"id"`
	FromEntityID     string  `json:"from_entity_id"`
	ToEntityID       string  `json:"to_entity_id"`
	FromDeploymentID *string `json:"from_deployment_id,omitempty"`
	ToDeploymentID   *string `json:"to_deployment_id,omitempty"`

	SwapType SwapType   `json:"swap_type"`
	Status   SwapStatus `json:"status"`

	Reason      string    `json:"reason,omitempty"`
	InitiatedBy string    `json:"initiated_by,omitempty"`
	InitiatedAt time.Time `json:"initiated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	DurationSeconds    *float64 `json:"duration_seconds,omitempty"`
	DowntimeMillis     *int64   `json:"downtime_milliseconds,omitempty"`
	Success            *bool    `json:"success,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`
	ValidationResults  *ValidationResult `json:"validation_results,omitempty"`

	RolledBackAt   *time.Time `json:"rolled_back_at,omitempty"`
	RolledBackBy   string     `json:"rolled_back_by,omitempty"`
	RollbackReason string     `json:"rollback_reason,omitempty"`

	// AffectedDeploymentIDs records the from-entity deployments this swap
	// deactivated, so a later rollback can reactivate exactly that set
	// deterministically (spec §4.3 "tie-breaks and edge cases").
	AffectedDeploymentIDs []string `json:"affected_deployment_ids,omitempty"`

	TargetEnvironment *Environment `json:"target_environment,omitempty"`
}

// IsRollbackable reports whether the swap is eligible for rollback
// (spec §4.3: status completed, not already rolled back).
func (s *Swap) IsRollbackable() bool {
	return s != nil && s.Status == SwapStatusCompleted && s.RolledBackAt == nil
}

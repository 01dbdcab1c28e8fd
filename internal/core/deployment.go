package core

import "time"

// Environment is a named deployment target (spec §3).
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
	EnvironmentTesting     Environment = "testing"
)

func (e Environment) Valid() bool {
	switch e {
	case EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction, EnvironmentTesting:
		return true
	}
	return false
}

// DeploymentStatus is a deployment row's lifecycle state (spec §3).
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusDeploying  DeploymentStatus = "deploying"
	DeploymentStatusActive     DeploymentStatus = "active"
	DeploymentStatusInactive   DeploymentStatus = "inactive"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusRolledBack DeploymentStatus = "rolled_back"
)

// Deployment is an instantiation of an entity into an environment
// (spec §3).
type Deployment struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	Version    string     `json:"version"`
	Environment Environment `json:"environment"`

	ConfigSnapshot     JSONObject `json:"config_snapshot,omitempty"`
	ParametersSnapshot JSONObject `json:"parameters_snapshot,omitempty"`

	Status           DeploymentStatus `json:"status"`
	DeployedAt       *time.Time       `json:"deployed_at,omitempty"`
	DeployedBy       string           `json:"deployed_by,omitempty"`
	DeploymentMethod string           `json:"deployment_method,omitempty"`

	RolledBackAt       *time.Time `json:"rolled_back_at,omitempty"`
	RolledBackBy        string     `json:"rolled_back_by,omitempty"`
	RollbackReason      string     `json:"rollback_reason,omitempty"`
	PreviousDeploymentID *string   `json:"previous_deployment_id,omitempty"`

	ValidationResults *ValidationResult `json:"validation_results,omitempty"`
	ErrorLogs         []string          `json:"error_logs,omitempty"`
	DurationSeconds   *float64          `json:"duration_seconds,omitempty"`

	HealthChecks    JSONObject `json:"health_checks,omitempty"`
	LastHealthCheck *time.Time `json:"last_health_check,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRolledBack reports whether the deployment has already been rolled back.
func (d *Deployment) IsRolledBack() bool {
	return d != nil && d.Status == DeploymentStatusRolledBack
}

// Package core holds the registry's domain model: the entity/deployment/
// swap/event/dependency types, their invariants, and the sentinel errors
// the rest of the service maps onto HTTP responses.
package core

import "time"

// EntityType enumerates the kinds of artifact the registry tracks.
type EntityType string

const (
	EntityTypeStrategy    EntityType = "strategy"
	EntityTypePipeline    EntityType = "pipeline"
	EntityTypeModel       EntityType = "model"
	EntityTypeFeatureSet  EntityType = "feature_set"
	EntityTypeTransformer EntityType = "transformer"
	EntityTypeValidator   EntityType = "validator"
	EntityTypeOptimizer   EntityType = "optimizer"
)

// ValidEntityTypes lists every accepted EntityType value.
var ValidEntityTypes = []EntityType{
	EntityTypeStrategy, EntityTypePipeline, EntityTypeModel,
	EntityTypeFeatureSet, EntityTypeTransformer, EntityTypeValidator,
	EntityTypeOptimizer,
}

func (t EntityType) Valid() bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EntityStatus is the entity's lifecycle state (§4.1).
type EntityStatus string

const (
	EntityStatusRegistered EntityStatus = "registered"
	EntityStatusValidated  EntityStatus = "validated"
	EntityStatusDeployed   EntityStatus = "deployed"
	EntityStatusActive     EntityStatus = "active"
	EntityStatusInactive   EntityStatus = "inactive"
	EntityStatusDeprecated EntityStatus = "deprecated"
	EntityStatusFailed     EntityStatus = "failed"
)

// HealthStatus is the entity's last-observed health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ResourceHints captures optional sizing hints for an artifact.
type ResourceHints struct {
	CPU    *string `json:"cpu,omitempty"`
	Memory *string `json:"memory,omitempty"`
	GPU    *string `json:"gpu,omitempty"`
}

// Entity is the versioned artifact tracked by the registry (spec §3).
type Entity struct {
	ID          string       `json:"id"`
	Name        string       `json:"name" validate:"required"`
	Type        EntityType   `json:"type" validate:"required"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version" validate:"required"`
	Author      string       `json:"author,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Config      JSONObject   `json:"config,omitempty"`
	Parameters  JSONObject   `json:"parameters,omitempty"`
	Requirements []string    `json:"requirements,omitempty"`
	Status       EntityStatus `json:"status"`
	HealthStatus HealthStatus `json:"health_status"`

	DeployedAt       *time.Time `json:"deployed_at,omitempty"`
	DeployedBy        string     `json:"deployed_by,omitempty"`
	DeploymentConfig JSONObject `json:"deployment_config,omitempty"`

	Resources ResourceHints `json:"resources"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// IsDeleted reports whether the row has been soft-deleted.
func (e *Entity) IsDeleted() bool {
	return e != nil && e.DeletedAt != nil
}

// TagSet returns the entity's tags as a set for overlap comparisons.
func (e *Entity) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.Tags))
	for _, t := range e.Tags {
		set[t] = struct{}{}
	}
	return set
}

// JSONObject is an opaque JSON object value (config/parameters/metadata).
// The API boundary only validates that it decodes to an object, never a
// compiled schema (spec §9 "Dynamic JSON payloads").
type JSONObject map[string]any

// Keys returns the object's top-level keys.
func (o JSONObject) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(o))
	for k := range o {
		keys[k] = struct{}{}
	}
	return keys
}

package core

// DependencyType classifies a directed entity relationship (spec §3).
type DependencyType string

const (
	DependencyTypeRequired    DependencyType = "required"
	DependencyTypeOptional    DependencyType = "optional"
	DependencyTypeRecommended DependencyType = "recommended"
	DependencyTypeConflicts   DependencyType = "conflicts_with"
)

// DependencyStatus is a dependency row's status (spec §3).
type DependencyStatus string

const (
	DependencyStatusActive   DependencyStatus = "active"
	DependencyStatusInactive DependencyStatus = "inactive"
	DependencyStatusBroken   DependencyStatus = "broken"
)

// Dependency is a directed relationship between two entities (spec §3).
type Dependency struct {
	ID               string           `json:"id"`
	EntityID         string           `json:"entity_id"`
	DependsOnEntityID string          `json:"depends_on_entity_id"`
	DependencyType   DependencyType   `json:"dependency_type"`
	MinVersion       string           `json:"min_version,omitempty"`
	MaxVersion       string           `json:"max_version,omitempty"`
	Status           DependencyStatus `json:"status"`
}

// DependencyView is the shape returned by GET /entities/{id}/dependencies
// (spec §6).
type DependencyView struct {
	DependencyID   string         `json:"dependency_id"`
	Entity         *Entity        `json:"entity"`
	DependencyType DependencyType `json:"dependency_type"`
	MinVersion     string         `json:"min_version,omitempty"`
	MaxVersion     string         `json:"max_version,omitempty"`
}

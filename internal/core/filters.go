package core

// Pagination carries the page/page_size parameters shared by every list
// endpoint (spec §4.6/§6/§8).
type Pagination struct {
	Page     int `json:"page" validate:"min=1"`
	PageSize int `json:"page_size" validate:"min=1,max=100"`
}

// Validate enforces the boundary rules from spec §8 ("page_size=0 or
// page_size>100 is rejected").
func (p Pagination) Validate(maxPageSize int) error {
	if p.Page < 1 {
		return ErrValidationFailed
	}
	if p.PageSize < 1 || p.PageSize > maxPageSize {
		return ErrValidationFailed
	}
	return nil
}

// Offset computes the SQL OFFSET for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page is the generic paginated response envelope (spec §4.6:
// "{items, total, page, page_size}").
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// EntityFilters narrows a list/search query over entities (spec §4.1/§6).
type EntityFilters struct {
	Type         *EntityType
	Category     *string
	Status       *EntityStatus
	HealthStatus *HealthStatus
	Search       string
	Tags         []string
}

// DeploymentFilters narrows a list query over deployments (spec §6).
type DeploymentFilters struct {
	EntityID    *string
	Environment *Environment
	Status      *DeploymentStatus
}

// SwapFilters narrows a list query over swaps (spec §6).
type SwapFilters struct {
	EntityID *string
	Status   *SwapStatus
}

// CheckResult is one named validation check's outcome (spec §4.4).
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ValidationResult is the structured, persisted outcome of a validation
// pass (spec §4.4, §9 "Validation results persistence").
type ValidationResult struct {
	Passed              bool          `json:"passed"`
	Checks              []CheckResult `json:"checks"`
	Errors              []string      `json:"errors"`
	Warnings            []string      `json:"warnings"`
	Compatible          *bool         `json:"compatible,omitempty"`
	EstimatedDowntimeMs *int64        `json:"estimated_downtime_ms,omitempty"`
}

// NewValidationResult builds an empty, passing result to be filled in by
// individual checks.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Passed: true}
}

// AddCheck appends a named check outcome. It does not change Passed or
// record an error; callers pair a failed check with AddError or
// AddWarning.
func (r *ValidationResult) AddCheck(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Passed: passed, Detail: detail})
}

// AddError records a blocking failure and flips Passed to false.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Passed = false
}

// AddWarning records a non-blocking concern.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

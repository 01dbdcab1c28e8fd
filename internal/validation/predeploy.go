// Package validation implements the three validation stages the
// Deployment Manager and Swap Engine run before and after mutating
// state (spec §4.4): pre-deployment checks, post-deployment checks, and
// swap compatibility checks. Each stage is a small struct with a
// Validate method that builds and returns a new *core.ValidationResult,
// grounded on the teacher's pkg/configvalidator/validators package
// shape (SecurityValidator.Validate(ctx, cfg, result)).
package validation

import (
	"context"
	"log/slog"

	"github.com/strategylib/control-plane/internal/core"
)

// PreDeploy runs the checks in spec §4.4(a).
type PreDeploy struct {
	logger *slog.Logger
}

func NewPreDeploy(logger *slog.Logger) *PreDeploy {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreDeploy{logger: logger}
}

var deployableStatuses = map[core.EntityStatus]bool{
	core.EntityStatusRegistered: true,
	core.EntityStatusValidated:  true,
	core.EntityStatusDeployed:   true,
	core.EntityStatusActive:     true,
}

// Validate checks whether e is eligible to be deployed into env, given
// an already-loaded existingActive deployment for that (entity,
// environment) pair, if any.
func (p *PreDeploy) Validate(ctx context.Context, e *core.Entity, existingActive *core.Deployment) *core.ValidationResult {
	r := core.NewValidationResult()

	statusOK := deployableStatuses[e.Status]
	r.AddCheck("entity_status_deployable", statusOK, string(e.Status))
	if !statusOK {
		r.AddError("entity status " + string(e.Status) + " is not deployable")
	}

	healthOK := e.HealthStatus != core.HealthStatusUnhealthy
	r.AddCheck("entity_health_not_unhealthy", healthOK, string(e.HealthStatus))
	if !healthOK {
		r.AddError("entity health status is unhealthy")
	}

	versionOK := e.Version != ""
	r.AddCheck("version_present", versionOK, e.Version)
	if !versionOK {
		r.AddError("entity version is empty")
	}

	noExistingActive := existingActive == nil
	r.AddCheck("no_existing_active_deployment", noExistingActive, "")
	if !noExistingActive {
		r.AddWarning("an active deployment already exists in this environment and will be deactivated")
	}

	p.logger.DebugContext(ctx, "pre-deployment validation complete",
		"entity_id", e.ID, "passed", r.Passed, "errors", len(r.Errors), "warnings", len(r.Warnings))
	return r
}

package validation

import (
	"context"
	"log/slog"

	"github.com/strategylib/control-plane/internal/core"
)

// PostDeploy runs the checks in spec §4.4(b). Unlike PreDeploy its
// result never blocks the write path; it is stored on
// deployment.validation_results purely for observability.
type PostDeploy struct {
	logger *slog.Logger
}

func NewPostDeploy(logger *slog.Logger) *PostDeploy {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostDeploy{logger: logger}
}

var postDeploySettledStatuses = map[core.DeploymentStatus]bool{
	core.DeploymentStatusActive:    true,
	core.DeploymentStatusDeploying: true,
}

func (p *PostDeploy) Validate(ctx context.Context, d *core.Deployment) *core.ValidationResult {
	r := core.NewValidationResult()

	exists := d != nil
	r.AddCheck("deployment_row_exists", exists, "")
	if !exists {
		r.AddError("deployment row does not exist")
		return r
	}

	hasSnapshot := len(d.ConfigSnapshot) > 0
	r.AddCheck("config_snapshot_present", hasSnapshot, "")
	if !hasSnapshot {
		r.AddWarning("deployment has no config snapshot")
	}

	statusOK := postDeploySettledStatuses[d.Status]
	r.AddCheck("status_settled", statusOK, string(d.Status))
	if !statusOK {
		r.AddError("deployment status " + string(d.Status) + " is not a settled post-deploy state")
	}

	p.logger.DebugContext(ctx, "post-deployment validation complete",
		"deployment_id", d.ID, "passed", r.Passed)
	return r
}

package validation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/validation"
)

func TestPreDeployValidatePasses(t *testing.T) {
	pd := validation.NewPreDeploy(nil)
	e := &core.Entity{Status: core.EntityStatusValidated, HealthStatus: core.HealthStatusHealthy, Version: "1.0.0"}

	r := pd.Validate(context.Background(), e, nil)
	assert.True(t, r.Passed)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestPreDeployValidateWarnsOnExistingActive(t *testing.T) {
	pd := validation.NewPreDeploy(nil)
	e := &core.Entity{Status: core.EntityStatusValidated, HealthStatus: core.HealthStatusHealthy, Version: "1.0.0"}
	existing := &core.Deployment{Status: core.DeploymentStatusActive}

	r := pd.Validate(context.Background(), e, existing)
	assert.True(t, r.Passed)
	assert.Len(t, r.Warnings, 1)
}

func TestPreDeployValidateFailsOnUnhealthy(t *testing.T) {
	pd := validation.NewPreDeploy(nil)
	e := &core.Entity{Status: core.EntityStatusValidated, HealthStatus: core.HealthStatusUnhealthy, Version: "1.0.0"}

	r := pd.Validate(context.Background(), e, nil)
	assert.False(t, r.Passed)
	assert.NotEmpty(t, r.Errors)
}

func TestPreDeployValidateFailsOnBadStatus(t *testing.T) {
	pd := validation.NewPreDeploy(nil)
	e := &core.Entity{Status: core.EntityStatusDeprecated, HealthStatus: core.HealthStatusHealthy, Version: "1.0.0"}

	r := pd.Validate(context.Background(), e, nil)
	assert.False(t, r.Passed)
}

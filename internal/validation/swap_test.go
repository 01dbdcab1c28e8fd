package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/validation"
)

func baseSwapEntities() (*core.Entity, *core.Entity) {
	from := &core.Entity{
		ID:           "from",
		Type:         core.EntityTypeStrategy,
		Status:       core.EntityStatusActive,
		HealthStatus: core.HealthStatusHealthy,
		Config:       core.JSONObject{"lookback": 20},
	}
	to := &core.Entity{
		ID:           "to",
		Type:         core.EntityTypeStrategy,
		Status:       core.EntityStatusValidated,
		HealthStatus: core.HealthStatusHealthy,
		Config:       core.JSONObject{"lookback": 20, "threshold": 0.5},
	}
	return from, to
}

func TestSwapValidateCompatible(t *testing.T) {
	sv := validation.NewSwap(nil)
	from, to := baseSwapEntities()
	active := &core.Deployment{Status: core.DeploymentStatusActive}

	r := sv.Validate(context.Background(), from, to, active)
	assert.True(t, r.Passed)
	assert.NotNil(t, r.Compatible)
	assert.True(t, *r.Compatible)
	assert.NotNil(t, r.EstimatedDowntimeMs)
}

func TestSwapValidateTypeMismatchFails(t *testing.T) {
	sv := validation.NewSwap(nil)
	from, to := baseSwapEntities()
	to.Type = core.EntityTypeModel

	r := sv.Validate(context.Background(), from, to, &core.Deployment{})
	assert.False(t, r.Passed)
}

func TestSwapValidateNoActiveDeploymentFails(t *testing.T) {
	sv := validation.NewSwap(nil)
	from, to := baseSwapEntities()

	r := sv.Validate(context.Background(), from, to, nil)
	assert.False(t, r.Passed)
}

func TestSwapValidateMissingConfigKeyWarnsAndIncompatible(t *testing.T) {
	sv := validation.NewSwap(nil)
	from, to := baseSwapEntities()
	from.Config = core.JSONObject{"lookback": 20, "extra_param": true}

	r := sv.Validate(context.Background(), from, to, &core.Deployment{Status: core.DeploymentStatusActive})
	assert.True(t, r.Passed) // missing keys are a warning, not an error
	assert.NotEmpty(t, r.Warnings)
	assert.False(t, *r.Compatible)
}

func TestSwapValidateDeletedEntityFails(t *testing.T) {
	sv := validation.NewSwap(nil)
	from, to := baseSwapEntities()
	deletedAt := time.Now()
	from.DeletedAt = &deletedAt

	r := sv.Validate(context.Background(), from, to, &core.Deployment{Status: core.DeploymentStatusActive})
	assert.False(t, r.Passed)
}

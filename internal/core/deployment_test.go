package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
)

func TestDeploymentIsRolledBack(t *testing.T) {
	d := &core.Deployment{Status: core.DeploymentStatusActive}
	assert.False(t, d.IsRolledBack())

	d.Status = core.DeploymentStatusRolledBack
	assert.True(t, d.IsRolledBack())

	var nilDeployment *core.Deployment
	assert.False(t, nilDeployment.IsRolledBack())
}

func TestEnvironmentValid(t *testing.T) {
	assert.True(t, core.EnvironmentProduction.Valid())
	assert.False(t, core.Environment("sandbox").Valid())
}

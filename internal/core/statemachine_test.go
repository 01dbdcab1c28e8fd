package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
)

func TestCanTransitionEntity_LegalEdges(t *testing.T) {
	cases := []struct {
		from, to core.EntityStatus
		want     bool
	}{
		{core.EntityStatusRegistered, core.EntityStatusValidated, true},
		{core.EntityStatusValidated, core.EntityStatusDeployed, true},
		{core.EntityStatusDeployed, core.EntityStatusActive, true},
		{core.EntityStatusActive, core.EntityStatusInactive, true},
		{core.EntityStatusInactive, core.EntityStatusActive, true},
		{core.EntityStatusDeployed, core.EntityStatusDeprecated, true},
		{core.EntityStatusRegistered, core.EntityStatusFailed, true},
		{core.EntityStatusActive, core.EntityStatusActive, true}, // no-op
	}
	for _, c := range cases {
		assert.Equal(t, c.want, core.CanTransitionEntity(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCanTransitionEntity_IllegalEdges(t *testing.T) {
	cases := []struct{ from, to core.EntityStatus }{
		{core.EntityStatusRegistered, core.EntityStatusActive},
		{core.EntityStatusDeprecated, core.EntityStatusActive},
		{core.EntityStatusFailed, core.EntityStatusRegistered},
		{core.EntityStatusInactive, core.EntityStatusRegistered},
	}
	for _, c := range cases {
		assert.False(t, core.CanTransitionEntity(c.from, c.to), "%s -> %s should be illegal", c.from, c.to)
	}
}

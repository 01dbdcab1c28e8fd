package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
)

func TestSwapIsRollbackable(t *testing.T) {
	sw := &core.Swap{Status: core.SwapStatusCompleted}
	assert.True(t, sw.IsRollbackable())

	sw.Status = core.SwapStatusFailed
	assert.False(t, sw.IsRollbackable())

	sw.Status = core.SwapStatusCompleted
	now := time.Now()
	sw.RolledBackAt = &now
	assert.False(t, sw.IsRollbackable())

	var nilSwap *core.Swap
	assert.False(t, nilSwap.IsRollbackable())
}

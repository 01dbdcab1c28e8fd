package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strategylib/control-plane/internal/core"
)

func TestPaginationValidate(t *testing.T) {
	assert.NoError(t, core.Pagination{Page: 1, PageSize: 1}.Validate(100))
	assert.Error(t, core.Pagination{Page: 0, PageSize: 1}.Validate(100))
	assert.Error(t, core.Pagination{Page: 1, PageSize: 0}.Validate(100))
	assert.Error(t, core.Pagination{Page: 1, PageSize: 101}.Validate(100))
}

func TestPaginationOffset(t *testing.T) {
	assert.Equal(t, 0, core.Pagination{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 20, core.Pagination{Page: 2, PageSize: 20}.Offset())
}

func TestValidationResultAccumulation(t *testing.T) {
	r := core.NewValidationResult()
	assert.True(t, r.Passed)

	r.AddCheck("version_present", true, "")
	r.AddWarning("no active deployment yet")
	assert.True(t, r.Passed)
	assert.Len(t, r.Warnings, 1)

	r.AddError("entity is unhealthy")
	assert.False(t, r.Passed)
	assert.Len(t, r.Errors, 1)
}

package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
)

type sample struct {
	StudentGroup string  `json:"student_group" validate:"required"`
	Weight       float64 `json:"difficulty_weight" validate:"max=1"`
	Format       string  `json:"format,omitempty" validate:"omitempty,oneof=csv pdf"`
}

func TestErrorNamesJSONFields(t *testing.T) {
	err := New().Struct(sample{Weight: 2, Format: "doc"})
	require.Error(t, err)

	appErr := Error(err, "row 4:")
	assert.True(t, errors.Is(appErr, appErrors.ErrValidation))
	assert.Equal(t, "row 4: student_group is required; difficulty_weight must be <= 1; format must be one of [csv pdf]", appErr.Message)
}

func TestErrorWithoutFieldErrors(t *testing.T) {
	appErr := Error(errors.New("bad"), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "invalid payload", appErr.Message)
}

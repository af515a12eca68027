package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Unknown routing target", f.New(errors.ErrUnknownTarget).Error())
	assert.Equal(t, "bad", f.WithMessage(errors.ErrInvalidPayload, "bad").Error())
	assert.Equal(t, "Invalid command payload: setpoint", f.WithData(errors.ErrInvalidPayload, "setpoint").Error())
	assert.Equal(t, "custom_code", f.New(errors.ErrorCode("custom_code")).Error())
}

func TestWrapUnwrap(t *testing.T) {
	base := fmt.Errorf("disk gone")
	err := errors.New().Wrap(errors.ErrDeviceRead, base)

	assert.Equal(t, errors.ErrDeviceRead, err.Code())
	assert.True(t, errors.Is(err, base))
	assert.Contains(t, err.Error(), "disk gone")
}

func TestHasCode(t *testing.T) {
	inner := errors.New().New(errors.ErrNoReading)
	outer := fmt.Errorf("tick: %w", errors.New().Wrap(errors.ErrDeviceRead, inner))

	assert.True(t, errors.HasCode(outer, errors.ErrNoReading))
	assert.True(t, errors.HasCode(outer, errors.ErrDeviceRead))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestWithDataKeepsCode(t *testing.T) {
	err := errors.New().New(errors.ErrInvalidPayload).WithData(42)

	assert.Equal(t, errors.ErrInvalidPayload, err.Code())
	assert.Equal(t, 42, err.GetData())
}

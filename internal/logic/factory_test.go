package logic

import (
	"testing"

	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHysteresisDefaults(t *testing.T) {
	l, err := New(KindHysteresis, nil)
	require.NoError(t, err)

	h, ok := l.(*Hysteresis)
	require.True(t, ok)
	assert.Equal(t, Cooling, h.Polarity())
	over, under := h.Margins()
	assert.Equal(t, DefaultMargin, over)
	assert.Equal(t, DefaultMargin, under)
}

func TestNewHysteresisPolarity(t *testing.T) {
	tests := []struct {
		name   string
		coeffs map[string]any
		want   Polarity
	}{
		{"default", map[string]any{}, Cooling},
		{"keepCold", map[string]any{"keepCold": true}, Cooling},
		{"keepCold false", map[string]any{"keepCold": false}, Heating},
		{"keepHot", map[string]any{"keepHot": true}, Heating},
		{"keepHot wins", map[string]any{"keepCold": true, "keepHot": true}, Heating},
		{"keepHot false", map[string]any{"keepCold": false, "keepHot": false}, Cooling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(KindHysteresis, tt.coeffs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.(*Hysteresis).Polarity())
		})
	}
}

func TestNewHysteresisMargins(t *testing.T) {
	l, err := New(KindHysteresis, map[string]any{
		"allowedOvershoot":  1,
		"allowedUndershoot": "0.25",
	})
	require.NoError(t, err)

	over, under := l.(*Hysteresis).Margins()
	assert.Equal(t, 1.0, over)
	assert.Equal(t, 0.3, under)
}

func TestNewRejects(t *testing.T) {
	_, err := New(Kind("PIDLogic"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrUnknownKind))

	_, err = New(KindHysteresis, map[string]any{"allowedOvershoot": -2})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidCoefficients))

	_, err = New(KindHysteresis, map[string]any{"keepHot": []int{1}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidCoefficients))
}

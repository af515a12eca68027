package device_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{1.0, true},
		{0.0, false},
		{1, true},
		{0, false},
		{"true", true},
		{"false", false},
		{"1", true},
		{"on", true},
		{"OFF", false},
		{nil, false},
	}
	for _, tt := range tests {
		got, err := device.ToBool(tt.in)
		require.NoError(t, err, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestToBoolInvalid(t *testing.T) {
	for _, in := range []any{"maybe", []any{1}, map[string]any{}} {
		_, err := device.ToBool(in)
		require.Error(t, err, "%#v", in)
		assert.True(t, errors.HasCode(err, device.ErrInvalidPayload))
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{68.5, 68.5},
		{68, 68},
		{"67.25", 67.25},
	}
	for _, tt := range tests {
		got, err := device.ToFloat(tt.in)
		require.NoError(t, err, "%#v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9)
	}
}

func TestToFloatInvalid(t *testing.T) {
	for _, in := range []any{nil, true, "warm", math.NaN(), math.Inf(1), []any{}} {
		_, err := device.ToFloat(in)
		require.Error(t, err, "%#v", in)
		assert.True(t, errors.HasCode(err, device.ErrInvalidPayload))
	}
}

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0.0, device.ClampPower(-5))
	assert.Equal(t, 100.0, device.ClampPower(150))
	assert.Equal(t, 42.0, device.ClampPower(42))
	assert.Equal(t, 0.5, device.Round(0.54, 1))
	assert.Equal(t, 0.6, device.Round(0.56, 1))
	assert.Equal(t, 1.0, device.Round(0.96, 1))
}

func TestBrewingMetrics(t *testing.T) {
	assert.InDelta(t, 5.25, device.ABV(1.010, 1.050), 1e-9)
	assert.InDelta(t, 80.0, device.Attenuation(1.010, 1.050), 1e-9)
	assert.Equal(t, 0.0, device.Attenuation(1.010, 1.0))
}

func TestDecodeSettings(t *testing.T) {
	var out struct {
		Name     string        `mapstructure:"name"`
		Interval time.Duration `mapstructure:"interval"`
		Line     int           `mapstructure:"line"`
	}

	err := device.DecodeSettings(map[string]any{"name": "probe", "interval": "3s", "line": "17"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "probe", out.Name)
	assert.Equal(t, 3*time.Second, out.Interval)
	assert.Equal(t, 17, out.Line)

	err = device.DecodeSettings(map[string]any{"line": "seventeen"}, &out)
	assert.True(t, errors.HasCode(err, device.ErrInvalidSettings))
}

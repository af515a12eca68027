package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLogLevel(DebugLevel)
	t.Cleanup(func() { SetLogLevel(WarnLevel) })

	log := New("controller")
	log.WarnWithCode(errors.New().WithData(errors.ErrInvalidPayload, "setpoint")).Msg("rejected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "controller", entry["component"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, string(errors.ErrInvalidPayload), entry["error_code"])
	assert.Equal(t, "rejected", entry["message"])
}

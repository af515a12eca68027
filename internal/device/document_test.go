package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
)

func TestParseDocumentKeepsKeyOrder(t *testing.T) {
	doc, err := device.ParseDocument([]byte(`{"power": 40, "automatic": false, "setpoint": {"v": 1}}`))
	require.NoError(t, err)

	assert.Equal(t, device.Document{
		{Endpoint: "power", Payload: 40.0},
		{Endpoint: "automatic", Payload: false},
		{Endpoint: "setpoint", Payload: map[string]any{"v": 1.0}},
	}, doc)

	v, ok := doc.Get("automatic")
	assert.True(t, ok)
	assert.Equal(t, false, v)

	_, ok = doc.Get("enabled")
	assert.False(t, ok)
}

func TestParseDocumentRepeatedKey(t *testing.T) {
	doc, err := device.ParseDocument([]byte(`{"setpoint": 60, "enabled": true, "setpoint": 62}`))
	require.NoError(t, err)

	assert.Equal(t, device.Document{
		{Endpoint: "setpoint", Payload: 62.0},
		{Endpoint: "enabled", Payload: true},
	}, doc)
}

func TestParseDocumentEmptyObject(t *testing.T) {
	doc, err := device.ParseDocument([]byte(` {} `))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestParseDocumentRejectsNonObjects(t *testing.T) {
	for _, input := range []string{``, `null`, `[1, 2]`, `"on"`, `{"setpoint":`, `{"a": 1} {"b": 2}`} {
		_, err := device.ParseDocument([]byte(input))
		assert.True(t, errors.HasCode(err, errors.ErrInvalidPayload), "input %q: %v", input, err)
	}
}

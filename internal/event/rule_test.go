package event

import (
	"sync"
	"testing"

	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	endpoints []string
	payloads  []any
}

func (h *recordingHandler) Dispatch(endpoint string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints = append(h.endpoints, endpoint)
	h.payloads = append(h.payloads, payload)
	return nil
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("Fridge.setpoint => Heater.setpoint")
	require.NoError(t, err)

	assert.Equal(t, Rule{
		Source:         "Fridge",
		SourceEndpoint: "setpoint",
		Dest:           "Heater",
		DestEndpoint:   "setpoint",
	}, r)
	assert.Equal(t, "Fridge.setpoint", r.SourceName())
	assert.Equal(t, "Fridge.setpoint=>Heater.setpoint", r.String())
}

func TestParseRuleInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"Fridge.setpoint",
		"Fridge=>Heater.setpoint",
		"Fridge.setpoint=>Heater",
		"a.b.c=>Heater.setpoint",
		".setpoint=>Heater.setpoint",
		"Fridge.setpoint=>Heater.",
	} {
		_, err := ParseRule(s)
		require.Error(t, err, s)
		assert.True(t, errors.HasCode(err, ErrInvalidRule), s)
	}
}

func TestConnectForwardsToHandler(t *testing.T) {
	bus := NewBus()
	h := &recordingHandler{}

	r, err := ParseRule("Probe.temperature=>Heater.reading")
	require.NoError(t, err)
	bus.Connect(r, h)

	bus.Notify("Probe", "temperature", 67.2)
	bus.Notify("Probe", "gravity", 1.050)
	bus.Wait()

	assert.Equal(t, []string{"reading"}, h.endpoints)
	assert.Equal(t, []any{67.2}, h.payloads)
}

package dummy_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/device/dummy"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name())
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestSensorNoReadingBeforeSample(t *testing.T) {
	s, err := dummy.NewSensor("probe", dummy.SensorSettings{Type: dummy.Thermo}, &recorder{})
	require.NoError(t, err)

	_, err = s.Temperature()
	assert.True(t, errors.HasCode(err, device.ErrNoReading))
}

func TestThermoSensorPublishesTemperature(t *testing.T) {
	rec := &recorder{}
	s, err := dummy.NewSensor("probe", dummy.SensorSettings{Type: dummy.Thermo, FakeTemp: ptr(60)}, rec)
	require.NoError(t, err)

	s.Sample()

	assert.Equal(t, []string{"probe.temperature"}, rec.names())
	temp, err := s.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 60, temp, 25)

	_, err = s.Gravity()
	assert.True(t, errors.HasCode(err, device.ErrNoReading))
}

func TestTiltSensorPublishesBoth(t *testing.T) {
	rec := &recorder{}
	s, err := dummy.NewSensor("tilt", dummy.SensorSettings{Type: dummy.Tilt, StartGravity: ptr(1.060)}, rec)
	require.NoError(t, err)

	s.Sample()

	assert.Equal(t, []string{"tilt.temperature", "tilt.gravity"}, rec.names())

	g, err := s.Gravity()
	require.NoError(t, err)
	abv, err := s.ABV()
	require.NoError(t, err)
	assert.Equal(t, device.ABV(g, 1.060), abv)

	og, err := s.OriginalGravity()
	require.NoError(t, err)
	assert.Equal(t, 1.060, og)
}

func TestSensorDispatch(t *testing.T) {
	s, err := dummy.NewSensor("probe", dummy.SensorSettings{Type: dummy.Thermo}, &recorder{})
	require.NoError(t, err)

	assert.NoError(t, s.Dispatch("temperature", "72.5"))

	err = s.Dispatch("gravity", 1.01)
	assert.True(t, errors.HasCode(err, device.ErrUnknownEndpoint))

	err = s.Dispatch("temperature", "warm")
	assert.True(t, errors.HasCode(err, device.ErrInvalidPayload))
}

func TestUnknownSensorType(t *testing.T) {
	_, err := dummy.NewSensor("probe", dummy.SensorSettings{Type: "laser"}, &recorder{})
	assert.True(t, errors.HasCode(err, device.ErrInvalidSettings))
}

func TestActorPublishesPower(t *testing.T) {
	rec := &recorder{}
	a := dummy.NewActor("heater", rec)

	require.NoError(t, a.UpdatePower(150))
	p, err := a.Power()
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	require.NoError(t, a.Off())
	require.Len(t, rec.events, 2)
	assert.Equal(t, "heater.power", rec.events[1].Name())
	assert.Equal(t, 0, rec.events[1].Payload)
}

func TestActorDispatchState(t *testing.T) {
	a := dummy.NewActor("heater", &recorder{})

	require.NoError(t, a.Dispatch("state", 1))
	p, _ := a.Power()
	assert.Equal(t, 100.0, p)

	require.NoError(t, a.Dispatch("state", "0"))
	p, _ = a.Power()
	assert.Equal(t, 0.0, p)

	assert.True(t, errors.HasCode(a.Dispatch("state", 2), device.ErrInvalidPayload))
	assert.True(t, errors.HasCode(a.Dispatch("color", 1), device.ErrUnknownEndpoint))
}

package w1

import (
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
)

const goodReading = "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestSensor(t *testing.T, s Settings, contents string) (*Sensor, fstest.MapFS, *recorder) {
	t.Helper()
	fsys := fstest.MapFS{
		"28-0001/w1_slave": &fstest.MapFile{Data: []byte(contents)},
	}
	rec := &recorder{}
	s.ID = "28-0001"
	sensor, err := NewWithFS("probe", s, fsys, rec)
	require.NoError(t, err)
	return sensor, fsys, rec
}

func TestPollFahrenheit(t *testing.T) {
	sensor, _, rec := newTestSensor(t, Settings{}, goodReading)

	require.NoError(t, sensor.Poll())

	temp, err := sensor.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 73.63, temp, 1e-9)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "probe.temperature", rec.events[0].Name())
}

func TestPollCelsiusWithOffset(t *testing.T) {
	sensor, _, _ := newTestSensor(t, Settings{Unit: Celsius, Offset: -0.5}, goodReading)

	require.NoError(t, sensor.Poll())

	temp, err := sensor.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 22.63, temp, 1e-9)
}

func TestBadCRCKeepsLastValue(t *testing.T) {
	sensor, fsys, _ := newTestSensor(t, Settings{Unit: Celsius}, goodReading)
	require.NoError(t, sensor.Poll())

	fsys["28-0001/w1_slave"] = &fstest.MapFile{Data: []byte("72 01 : crc=00 NO\n72 01 t=99999\n")}
	err := sensor.Poll()
	assert.True(t, errors.HasCode(err, device.ErrReadFailed))

	temp, err := sensor.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 23.13, temp, 1e-9)
}

func TestNoReadingUntilFirstPoll(t *testing.T) {
	sensor, _, _ := newTestSensor(t, Settings{}, "garbage")

	assert.Error(t, sensor.Poll())
	_, err := sensor.Temperature()
	assert.True(t, errors.HasCode(err, device.ErrNoReading))
}

func TestPublishThrottledBySendTime(t *testing.T) {
	sensor, _, rec := newTestSensor(t, Settings{SendTime: 10 * time.Second}, goodReading)

	now := time.Unix(1000, 0)
	sensor.now = func() time.Time { return now }

	require.NoError(t, sensor.Poll())
	now = now.Add(2 * time.Second)
	require.NoError(t, sensor.Poll())
	assert.Equal(t, 1, rec.count())

	now = now.Add(8 * time.Second)
	require.NoError(t, sensor.Poll())
	assert.Equal(t, 2, rec.count())
}

func TestSettingsValidation(t *testing.T) {
	_, err := NewWithFS("probe", Settings{}, fstest.MapFS{}, &recorder{})
	assert.True(t, errors.HasCode(err, device.ErrInvalidSettings))

	_, err = NewWithFS("probe", Settings{ID: "x", Unit: "K"}, fstest.MapFS{}, &recorder{})
	assert.True(t, errors.HasCode(err, device.ErrInvalidSettings))
}

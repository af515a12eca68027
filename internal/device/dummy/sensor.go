// Package dummy provides simulated drivers for running without hardware.
package dummy

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const (
	defaultFakeTemp     = 68.5
	defaultFakeGravity  = 1.024
	defaultStartGravity = 1.050
	defaultInterval     = 10 * time.Second

	tempStdDev    = 2.5
	gravityStdDev = 0.01
)

// SensorType selects which readings a DummySensor produces.
type SensorType string

const (
	Thermo SensorType = "thermo"
	Hydro  SensorType = "hydro"
	Tilt   SensorType = "tilt"
)

// SensorSettings configure a DummySensor.
type SensorSettings struct {
	Type         SensorType    `mapstructure:"type"`
	FakeTemp     *float64      `mapstructure:"fakeTemp"`
	FakeGravity  *float64      `mapstructure:"fakeGravity"`
	StartGravity *float64      `mapstructure:"startGravity"`
	Interval     time.Duration `mapstructure:"interval"`
}

// Sensor publishes noisy readings around a configurable value.
type Sensor struct {
	name     string
	kind     SensorType
	interval time.Duration
	bus      event.Publisher
	log      logger.Logger

	mu           sync.RWMutex
	rng          *rand.Rand
	fakeTemp     float64
	fakeGravity  float64
	startGravity float64
	lastTemp     float64
	lastGravity  float64
}

func NewSensor(name string, s SensorSettings, bus event.Publisher) (*Sensor, error) {
	errFactory := errors.New()

	sensor := &Sensor{
		name:         name,
		kind:         s.Type,
		interval:     s.Interval,
		bus:          bus,
		log:          logger.New("dummy"),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		fakeTemp:     math.NaN(),
		fakeGravity:  math.NaN(),
		startGravity: defaultStartGravity,
		lastTemp:     math.NaN(),
		lastGravity:  math.NaN(),
	}
	if sensor.interval <= 0 {
		sensor.interval = defaultInterval
	}
	if s.StartGravity != nil {
		sensor.startGravity = *s.StartGravity
	}

	switch s.Type {
	case Thermo:
		sensor.fakeTemp = valueOr(s.FakeTemp, defaultFakeTemp)
	case Hydro:
		sensor.fakeGravity = valueOr(s.FakeGravity, defaultFakeGravity)
	case Tilt:
		sensor.fakeTemp = valueOr(s.FakeTemp, defaultFakeTemp)
		sensor.fakeGravity = valueOr(s.FakeGravity, defaultFakeGravity)
	default:
		return nil, errFactory.WithData(device.ErrInvalidSettings, "unknown sensor type: "+string(s.Type))
	}

	return sensor, nil
}

// Run produces a reading every interval until ctx is cancelled.
func (s *Sensor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sample()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sample draws one reading per supported metric and publishes it.
func (s *Sensor) Sample() {
	s.mu.Lock()
	var publish []event.Event
	if s.hasTemp() {
		s.lastTemp = device.Round(s.rng.NormFloat64()*tempStdDev+s.fakeTemp, 1)
		publish = append(publish, event.Event{Source: s.name, Endpoint: "temperature", Payload: s.lastTemp})
	}
	if s.hasGravity() {
		s.lastGravity = device.Round(s.rng.NormFloat64()*gravityStdDev+s.fakeGravity, 3)
		publish = append(publish, event.Event{Source: s.name, Endpoint: "gravity", Payload: s.lastGravity})
	}
	s.mu.Unlock()

	for _, ev := range publish {
		s.bus.Publish(ev)
	}
}

func (s *Sensor) Temperature() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return reading(s.lastTemp)
}

func (s *Sensor) Gravity() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return reading(s.lastGravity)
}

func (s *Sensor) ABV() (float64, error) {
	g, err := s.Gravity()
	if err != nil {
		return 0, err
	}

	return device.ABV(g, s.startGravity), nil
}

func (s *Sensor) Attenuation() (float64, error) {
	g, err := s.Gravity()
	if err != nil {
		return 0, err
	}

	return device.Attenuation(g, s.startGravity), nil
}

func (s *Sensor) OriginalGravity() (float64, error) {
	if !s.hasGravity() {
		return 0, errors.New().New(device.ErrNoReading)
	}

	return s.startGravity, nil
}

// Dispatch retargets the simulated value of a supported metric.
func (s *Sensor) Dispatch(endpoint string, payload any) error {
	errFactory := errors.New()

	v, err := device.ToFloat(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case endpoint == "temperature" && s.hasTemp():
		s.fakeTemp = v
	case endpoint == "gravity" && s.hasGravity():
		s.fakeGravity = v
	default:
		s.log.Warn().Str("sensor", s.name).Str("endpoint", endpoint).Msg("Unsupported endpoint")
		return errFactory.WithData(device.ErrUnknownEndpoint, endpoint)
	}

	return nil
}

func (s *Sensor) hasTemp() bool {
	return s.kind == Thermo || s.kind == Tilt
}

func (s *Sensor) hasGravity() bool {
	return s.kind == Hydro || s.kind == Tilt
}

func reading(v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, errors.New().New(device.ErrNoReading)
	}

	return v, nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

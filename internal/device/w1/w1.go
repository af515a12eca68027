// Package w1 reads DS18B20-style temperature probes exposed by the Linux
// one-wire sysfs driver.
package w1

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const (
	DevicesDir = "/sys/bus/w1/devices"

	defaultPollInterval = 2 * time.Second
	defaultSendTime     = 10 * time.Second
)

var readingPattern = regexp.MustCompile(`YES\n.*=(-?\d+)\s*$`)

// Unit is the scale reported by the sensor.
type Unit string

const (
	Fahrenheit Unit = "F"
	Celsius    Unit = "C"
)

type Settings struct {
	ID           string        `mapstructure:"id"`
	Offset       float64       `mapstructure:"offset"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	SendTime     time.Duration `mapstructure:"sendtime"`
	Unit         Unit          `mapstructure:"unit"`
}

// Sensor polls a probe and caches the last good reading.
type Sensor struct {
	name     string
	settings Settings
	fsys     fs.FS
	bus      event.Publisher
	log      logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	lastTemp float64
	lastSent time.Time
}

// New creates a sensor reading from the host's sysfs tree.
func New(name string, s Settings, bus event.Publisher) (*Sensor, error) {
	return NewWithFS(name, s, os.DirFS(DevicesDir), bus)
}

// NewWithFS creates a sensor reading "<id>/w1_slave" from fsys.
func NewWithFS(name string, s Settings, fsys fs.FS, bus event.Publisher) (*Sensor, error) {
	errFactory := errors.New()

	if s.ID == "" {
		return nil, errFactory.WithData(device.ErrInvalidSettings, "w1 sensor requires an id")
	}
	if s.PollInterval <= 0 {
		s.PollInterval = defaultPollInterval
	}
	if s.SendTime <= 0 {
		s.SendTime = defaultSendTime
	}
	switch s.Unit {
	case "":
		s.Unit = Fahrenheit
	case Fahrenheit, Celsius:
	default:
		return nil, errFactory.WithData(device.ErrInvalidSettings, "unknown unit: "+string(s.Unit))
	}

	return &Sensor{
		name:     name,
		settings: s,
		fsys:     fsys,
		bus:      bus,
		log:      logger.New("w1"),
		now:      time.Now,
		lastTemp: math.NaN(),
	}, nil
}

func (s *Sensor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Poll(); err != nil {
			s.log.Debug().Err(err).Str("sensor", s.name).Msg("Probe read failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads the probe once. A failed read keeps the previous value.
func (s *Sensor) Poll() error {
	temp, err := s.read()
	if err != nil {
		return err
	}

	now := s.now()

	s.mu.Lock()
	s.lastTemp = temp
	send := s.lastSent.IsZero() || now.Sub(s.lastSent) >= s.settings.SendTime
	if send {
		s.lastSent = now
	}
	s.mu.Unlock()

	if send {
		s.bus.Publish(event.Event{Source: s.name, Endpoint: "temperature", Payload: temp})
	}

	return nil
}

func (s *Sensor) Temperature() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if math.IsNaN(s.lastTemp) {
		return 0, errors.New().New(device.ErrNoReading)
	}

	return s.lastTemp, nil
}

func (s *Sensor) read() (float64, error) {
	errFactory := errors.New()

	contents, err := fs.ReadFile(s.fsys, path.Join(s.settings.ID, "w1_slave"))
	if err != nil {
		return 0, errFactory.Wrap(device.ErrReadFailed, err)
	}

	m := readingPattern.FindSubmatch(contents)
	if m == nil {
		return 0, errFactory.WithData(device.ErrReadFailed, string(contents))
	}

	milli, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, errFactory.Wrap(device.ErrReadFailed, err)
	}

	celsius := milli / 1000
	if s.settings.Unit == Celsius {
		return device.Round(celsius+s.settings.Offset, 2), nil
	}

	return device.Round(celsius*9/5+32+s.settings.Offset, 2), nil
}

// Package gpio drives a relay on a GPIO output line. The real line uses the
// Linux GPIO character device; tests use FakeLine.
package gpio

import (
	"sync"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const DefaultChip = "gpiochip0"

// Line is a single output line.
type Line interface {
	SetValue(value int) error
	Close() error
}

type Settings struct {
	Chip      string `mapstructure:"chip"`
	Line      int    `mapstructure:"line"`
	ActiveLow bool   `mapstructure:"activeLow"`
}

// Actor switches a relay fully on for any positive power.
type Actor struct {
	name string
	line Line
	bus  event.Publisher
	log  logger.Logger

	mu    sync.Mutex
	power float64
}

// New opens the configured line on the host's GPIO chip.
func New(name string, s Settings, bus event.Publisher) (*Actor, error) {
	if s.Chip == "" {
		s.Chip = DefaultChip
	}
	if s.Line < 0 {
		return nil, errors.New().WithData(device.ErrInvalidSettings, "gpio line must be non-negative")
	}

	line, err := OpenLine(s.Chip, s.Line, s.ActiveLow)
	if err != nil {
		return nil, err
	}

	return NewWithLine(name, line, bus), nil
}

func NewWithLine(name string, line Line, bus event.Publisher) *Actor {
	return &Actor{
		name: name,
		line: line,
		bus:  bus,
		log:  logger.New("gpio"),
	}
}

func (a *Actor) Power() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.power, nil
}

func (a *Actor) UpdatePower(percent float64) error {
	percent = device.ClampPower(percent)
	value := 0
	if percent > 0 {
		value = 1
		percent = 100
	}

	a.mu.Lock()
	if err := a.line.SetValue(value); err != nil {
		a.mu.Unlock()
		return errors.New().Wrap(device.ErrWriteFailed, err)
	}
	a.power = percent
	a.mu.Unlock()

	a.log.Debug().Str("actor", a.name).Int("value", value).Msg("Relay switched")
	a.bus.Publish(event.Event{Source: a.name, Endpoint: "power", Payload: int(percent)})

	return nil
}

func (a *Actor) On() error {
	return a.UpdatePower(100)
}

func (a *Actor) Off() error {
	return a.UpdatePower(0)
}

func (a *Actor) Dispatch(endpoint string, payload any) error {
	if endpoint != "state" {
		return errors.New().WithData(device.ErrUnknownEndpoint, endpoint)
	}

	on, err := device.ToBool(payload)
	if err != nil {
		return err
	}
	if on {
		return a.On()
	}

	return a.Off()
}

// Close drives the relay off and releases the line.
func (a *Actor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if err := a.line.SetValue(0); err != nil {
		errs = append(errs, err)
	}
	if err := a.line.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.New().WithData(device.ErrWriteFailed, errs)
	}

	return nil
}

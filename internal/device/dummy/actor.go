package dummy

import (
	"sync"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/event"
	"codeberg.org/mutker/brewctl/internal/logger"
)

// Actor records the requested power and announces it on the bus.
type Actor struct {
	name string
	bus  event.Publisher
	log  logger.Logger

	mu    sync.RWMutex
	power float64
}

func NewActor(name string, bus event.Publisher) *Actor {
	return &Actor{
		name: name,
		bus:  bus,
		log:  logger.New("dummy"),
	}
}

func (a *Actor) Power() (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.power, nil
}

func (a *Actor) UpdatePower(percent float64) error {
	percent = device.ClampPower(percent)

	a.mu.Lock()
	a.power = percent
	a.mu.Unlock()

	state := "OFF"
	if percent > 0 {
		state = "ON"
	}
	a.log.Debug().Str("actor", a.name).Float64("power", percent).Str("state", state).Msg("Setting power")
	a.bus.Publish(event.Event{Source: a.name, Endpoint: "power", Payload: int(percent)})

	return nil
}

func (a *Actor) On() error {
	return a.UpdatePower(100)
}

func (a *Actor) Off() error {
	return a.UpdatePower(0)
}

// Dispatch handles "state" with 1 for on and 0 for off.
func (a *Actor) Dispatch(endpoint string, payload any) error {
	errFactory := errors.New()

	if endpoint != "state" {
		return errFactory.WithData(device.ErrUnknownEndpoint, endpoint)
	}

	v, err := device.ToFloat(payload)
	if err != nil {
		return err
	}

	switch v {
	case 0:
		a.log.Info().Str("actor", a.name).Msg("Turning off")
		return a.Off()
	case 1:
		a.log.Info().Str("actor", a.name).Msg("Turning on")
		return a.On()
	default:
		a.log.Warn().Str("actor", a.name).Float64("value", v).Msg("Unsupported state value")
		return errFactory.WithData(device.ErrInvalidPayload, v)
	}
}

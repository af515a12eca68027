// Package logic implements the on/off control decisions used by
// controllers.
package logic

import (
	"sync"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
)

const (
	DefaultMargin = 0.5

	outputOn  = 100.0
	outputOff = 0.0
)

// Polarity selects which side of the setpoint the actuator pushes toward.
type Polarity int

const (
	// Cooling acts when the temperature is at or above the threshold.
	Cooling Polarity = iota
	// Heating acts when the temperature is at or below the threshold.
	Heating
)

func (p Polarity) String() string {
	if p == Heating {
		return "heating"
	}
	return "cooling"
}

// Hysteresis is a bang-bang controller. The threshold depends on the previous
// output so the actuator does not chatter around the setpoint.
type Hysteresis struct {
	mu         sync.Mutex
	polarity   Polarity
	overshoot  float64
	undershoot float64
	lastOutput int
}

func NewHysteresis(polarity Polarity, overshoot, undershoot float64) *Hysteresis {
	return &Hysteresis{
		polarity:   polarity,
		overshoot:  device.Round(overshoot, 1),
		undershoot: device.Round(undershoot, 1),
	}
}

// Calc returns 100 when the actuator should run and 0 otherwise, and
// remembers the decision for the next call.
func (h *Hysteresis) Calc(current, target float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	act := h.shouldAct(current, target)
	if act {
		h.lastOutput = 1
		return outputOn
	}
	h.lastOutput = 0

	return outputOff
}

func (h *Hysteresis) shouldAct(current, target float64) bool {
	on := h.lastOutput == 1

	switch h.polarity {
	case Heating:
		threshold := target - h.undershoot
		if on {
			threshold = target + h.overshoot
		}
		return current <= threshold
	default:
		threshold := target + h.overshoot
		if on {
			threshold = target - h.undershoot
		}
		return current >= threshold
	}
}

// Dispatch handles the "overshoot" and "undershoot" tuning endpoints.
func (h *Hysteresis) Dispatch(endpoint string, payload any) error {
	errFactory := errors.New()

	var target *float64
	switch endpoint {
	case "overshoot", "allowedOvershoot":
		target = &h.overshoot
	case "undershoot", "allowedUndershoot":
		target = &h.undershoot
	default:
		return errFactory.WithData(device.ErrUnknownEndpoint, endpoint)
	}

	v, err := device.ToFloat(payload)
	if err != nil {
		return err
	}
	if v < 0 {
		return errFactory.WithData(device.ErrInvalidPayload, v)
	}

	h.mu.Lock()
	*target = device.Round(v, 1)
	h.mu.Unlock()

	return nil
}

// Polarity reports whether this logic cools or heats.
func (h *Hysteresis) Polarity() Polarity {
	return h.polarity
}

// Margins returns the current overshoot and undershoot.
func (h *Hysteresis) Margins() (overshoot, undershoot float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.overshoot, h.undershoot
}

// Parameters returns the tuning values announced on the bus at startup.
func (h *Hysteresis) Parameters() map[string]float64 {
	over, under := h.Margins()
	return map[string]float64{
		"allowedOvershoot":  over,
		"allowedUndershoot": under,
	}
}

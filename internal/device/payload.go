package device

import (
	"math"
	"strings"

	"codeberg.org/mutker/brewctl/internal/errors"
	"github.com/spf13/cast"
)

// ToBool coerces a command payload to a boolean. Numbers are true when
// non-zero; strings accept the strconv forms plus "on" and "off".
func ToBool(payload any) (bool, error) {
	switch v := payload.(type) {
	case float64:
		return v != 0, nil
	case float32:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}

	b, err := cast.ToBoolE(payload)
	if err != nil {
		return false, errors.New().Wrap(ErrInvalidPayload, err)
	}

	return b, nil
}

// ToFloat coerces a command payload to a finite float.
func ToFloat(payload any) (float64, error) {
	if payload == nil {
		return 0, errors.New().WithData(ErrInvalidPayload, "null")
	}
	if _, ok := payload.(bool); ok {
		return 0, errors.New().WithData(ErrInvalidPayload, payload)
	}

	f, err := cast.ToFloat64E(payload)
	if err != nil {
		return 0, errors.New().Wrap(ErrInvalidPayload, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New().WithData(ErrInvalidPayload, f)
	}

	return f, nil
}

// ClampPower limits a power percentage to [0,100].
func ClampPower(percent float64) float64 {
	return math.Max(0, math.Min(100, percent))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

package logic

import (
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
)

// Kind names a logic implementation in configuration.
type Kind string

const (
	KindHysteresis Kind = "HysteresisLogic"
)

// Tunable is implemented by logic whose parameters are announced on startup.
type Tunable interface {
	Parameters() map[string]float64
}

// HysteresisSettings are the logicCoeffs accepted by HysteresisLogic.
type HysteresisSettings struct {
	AllowedOvershoot  *float64 `mapstructure:"allowedOvershoot"`
	AllowedUndershoot *float64 `mapstructure:"allowedUndershoot"`
	KeepCold          *bool    `mapstructure:"keepCold"`
	KeepHot           *bool    `mapstructure:"keepHot"`
}

// Polarity resolves keepHot/keepCold. keepHot wins; cooling is the default.
func (s HysteresisSettings) Polarity() Polarity {
	keepHot := false
	if s.KeepCold != nil {
		keepHot = !*s.KeepCold
	}
	if s.KeepHot != nil {
		keepHot = *s.KeepHot
	}
	if keepHot {
		return Heating
	}

	return Cooling
}

// New builds the logic named by kind from its configured coefficients.
func New(kind Kind, coeffs map[string]any) (device.Logic, error) {
	errFactory := errors.New()

	switch kind {
	case KindHysteresis:
		var s HysteresisSettings
		if err := device.DecodeSettings(coeffs, &s); err != nil {
			return nil, errFactory.Wrap(ErrInvalidCoefficients, err)
		}

		over, under := DefaultMargin, DefaultMargin
		if s.AllowedOvershoot != nil {
			over = *s.AllowedOvershoot
		}
		if s.AllowedUndershoot != nil {
			under = *s.AllowedUndershoot
		}
		if over < 0 || under < 0 {
			return nil, errFactory.WithData(ErrInvalidCoefficients, "margins must not be negative")
		}

		return NewHysteresis(s.Polarity(), over, under), nil
	default:
		return nil, errFactory.WithData(ErrUnknownKind, string(kind))
	}
}

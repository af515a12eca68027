// Package device holds the capability contracts implemented by sensor,
// actor and logic drivers, and the helpers they share.
package device

import "context"

// Sensor reports the most recent cached temperature. Reads never block on
// hardware; a driver returns ErrNoReading until it has a valid value.
type Sensor interface {
	Temperature() (float64, error)
}

// Hydrometer is implemented by sensors that also report brewing metrics.
type Hydrometer interface {
	Gravity() (float64, error)
	ABV() (float64, error)
	Attenuation() (float64, error)
	OriginalGravity() (float64, error)
}

// Actor drives a heating or cooling element at a power percentage in [0,100].
type Actor interface {
	Power() (float64, error)
	UpdatePower(percent float64) error
	On() error
	Off() error
}

// Logic turns a measured and a target temperature into a power percentage.
// Implementations are stateful and accept tuning commands through Dispatch.
type Logic interface {
	Calc(current, target float64) float64
	Dispatch(endpoint string, payload any) error
}

// Dispatcher is any component that accepts named commands.
type Dispatcher interface {
	Dispatch(endpoint string, payload any) error
}

// Runner is a component with its own periodic loop. Run returns when ctx is
// cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Closer releases hardware resources held by a driver.
type Closer interface {
	Close() error
}

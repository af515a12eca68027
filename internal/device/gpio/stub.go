//go:build !linux

package gpio

import (
	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
)

// OpenLine is not available on non-Linux platforms.
func OpenLine(string, int, bool) (Line, error) {
	return nil, errors.New().WithData(device.ErrUnsupported, "gpio requires linux")
}

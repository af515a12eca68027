//go:build linux

package gpio

import (
	"github.com/warthog618/go-gpiocdev"

	"codeberg.org/mutker/brewctl/internal/device"
	"codeberg.org/mutker/brewctl/internal/errors"
)

// OpenLine requests offset on chip as an output, initially inactive.
func OpenLine(chip string, offset int, activeLow bool) (Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, errors.New().Wrap(device.ErrWriteFailed, err)
	}

	return line, nil
}

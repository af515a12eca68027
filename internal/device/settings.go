package device

import (
	"github.com/mitchellh/mapstructure"

	"codeberg.org/mutker/brewctl/internal/errors"
)

// DecodeSettings decodes a plugin's configuration map into out. Scalars are
// converted loosely and durations accept strings such as "10s".
func DecodeSettings(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	if err := dec.Decode(input); err != nil {
		return errors.New().Wrap(ErrInvalidSettings, err)
	}

	return nil
}

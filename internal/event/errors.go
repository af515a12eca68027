package event

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrInvalidRule = errors.ErrorCode("event_invalid_rule")
)

package device

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrNoReading       = errors.ErrNoReading
	ErrInvalidPayload  = errors.ErrInvalidPayload
	ErrUnknownEndpoint = errors.ErrUnknownEndpoint
	ErrReadFailed      = errors.ErrDeviceRead
	ErrWriteFailed     = errors.ErrDeviceWrite
	ErrInvalidSettings = errors.ErrorCode("device_invalid_settings")
	ErrUnsupported     = errors.ErrorCode("device_unsupported")
)

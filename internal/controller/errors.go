package controller

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrMissingComponent = errors.ErrorCode("controller_missing_component")
	ErrInvalidPayload   = errors.ErrInvalidPayload
	ErrAdminFailed      = errors.ErrorCode("controller_admin_failed")
)

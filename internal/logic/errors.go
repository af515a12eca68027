package logic

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrUnknownKind         = errors.ErrorCode("logic_unknown_kind")
	ErrInvalidCoefficients = errors.ErrorCode("logic_invalid_coefficients")
)

package rig

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrUnknownController = errors.ErrUnknownTarget
	ErrInvalidDocument   = errors.ErrorCode("rig_invalid_document")
	ErrNoMembers         = errors.ErrorCode("rig_no_members")
)

package registry

import "codeberg.org/mutker/brewctl/internal/errors"

const (
	ErrUnknownPlugin    = errors.ErrorCode("registry_unknown_plugin")
	ErrBuildComponent   = errors.ErrorCode("registry_build_failed")
	ErrUnknownComponent = errors.ErrorCode("registry_unknown_component")
	ErrActorsOff        = errors.ErrActorsOff
)

package scheduler

import (
	"errors"
)

// Standard errors.
var (
	// ErrNilHost is returned by New when no Host is provided.
	ErrNilHost = errors.New("scheduler: nil host")

	// ErrInvalidPriority is returned when a priority cannot be parsed.
	ErrInvalidPriority = errors.New("scheduler: invalid priority")

	// ErrInvalidFrameRate is returned by Host.ForceFrameRate for frame rates
	// outside the supported range [0, 125]. Zero resets to the host default.
	ErrInvalidFrameRate = errors.New("scheduler: frame rate must be between 0 and 125 fps")
)

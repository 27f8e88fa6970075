package lane

import (
	"errors"
)

var (
	// ErrInvalidUpdatePriority is the panic value (wrapped) of FindUpdateLane,
	// for priorities that have no update lanes, or that must be allocated
	// via an Allocator.
	ErrInvalidUpdatePriority = errors.New("lane: invalid update priority")

	// ErrInvalidLanePriority is the panic value (wrapped) of functions given
	// a LanePriority outside the known range.
	ErrInvalidLanePriority = errors.New("lane: invalid lane priority")
)

package scheduler

import (
	"fmt"
)

// Priority is the scheduling priority of a task. Lower values are more
// urgent, NoPriority is only ever returned, never accepted.
type Priority int

const (
	NoPriority Priority = iota
	ImmediatePriority
	UserBlockingPriority
	NormalPriority
	LowPriority
	IdlePriority
)

// maxSigned31BitInt is the largest value that fits in a signed 31-bit
// integer, used as the "never" timeout for idle work.
const maxSigned31BitInt = 1073741823

// Timeouts in milliseconds, added to a task's start time to compute its
// expiration time.
const (
	// ImmediatePriorityTimeout times out immediately.
	ImmediatePriorityTimeout int64 = -1
	// UserBlockingPriorityTimeout eventually times out.
	UserBlockingPriorityTimeout int64 = 250
	NormalPriorityTimeout       int64 = 5000
	LowPriorityTimeout          int64 = 10000
	// IdlePriorityTimeout never times out.
	IdlePriorityTimeout int64 = maxSigned31BitInt
)

// Valid reports whether p may be used to schedule work.
func (p Priority) Valid() bool {
	return p >= ImmediatePriority && p <= IdlePriority
}

// Timeout returns the number of milliseconds after its start time that a
// task of priority p expires. Invalid priorities are treated as
// NormalPriority.
func (p Priority) Timeout() int64 {
	switch p {
	case ImmediatePriority:
		return ImmediatePriorityTimeout
	case UserBlockingPriority:
		return UserBlockingPriorityTimeout
	case IdlePriority:
		return IdlePriorityTimeout
	case LowPriority:
		return LowPriorityTimeout
	default:
		return NormalPriorityTimeout
	}
}

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case NoPriority:
		return "NoPriority"
	case ImmediatePriority:
		return "Immediate"
	case UserBlockingPriority:
		return "UserBlocking"
	case NormalPriority:
		return "Normal"
	case LowPriority:
		return "Low"
	case IdlePriority:
		return "Idle"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority is the inverse of Priority.String, also accepting the
// kebab-case forms used in configuration files (e.g. "user-blocking").
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "Immediate", "immediate":
		return ImmediatePriority, nil
	case "UserBlocking", "user-blocking", "userblocking":
		return UserBlockingPriority, nil
	case "Normal", "normal":
		return NormalPriority, nil
	case "Low", "low":
		return LowPriority, nil
	case "Idle", "idle":
		return IdlePriority, nil
	default:
		return NoPriority, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

package lane

import (
	"fmt"

	"github.com/joeycumines/go-scheduler/scheduler"
)

// LanePriority is the priority of a band. Higher values are more urgent.
type LanePriority int

const (
	NoLanePriority LanePriority = iota
	OffscreenLanePriority
	IdleLanePriority
	IdleHydrationLanePriority
	SelectiveHydrationLanePriority
	RetryLanePriority
	TransitionLanePriority
	TransitionHydrationLanePriority
	DefaultLanePriority
	DefaultHydrationLanePriority
	InputContinuousLanePriority
	InputContinuousHydrationLanePriority
	InputDiscreteLanePriority
	InputDiscreteHydrationLanePriority
	SyncBatchedLanePriority
	SyncLanePriority
)

// Valid reports whether p is a known lane priority, NoLanePriority
// included.
func (p LanePriority) Valid() bool {
	return p >= NoLanePriority && p <= SyncLanePriority
}

// String returns the band name for the priority.
func (p LanePriority) String() string {
	if p == NoLanePriority {
		return `NoLanePriority`
	}
	if p.Valid() {
		return bands[SyncLanePriority-p].name
	}
	return fmt.Sprintf("LanePriority(%d)", int(p))
}

// HigherLanePriority returns the higher of a and b, treating NoLanePriority
// as the lowest.
func HigherLanePriority(a, b LanePriority) LanePriority {
	if a != NoLanePriority && a > b {
		return a
	}
	return b
}

// SchedulerPriorityToLanePriority maps a scheduler priority to the lane
// priority of updates made at that priority. Unknown priorities map to
// NoLanePriority.
func SchedulerPriorityToLanePriority(p scheduler.Priority) LanePriority {
	switch p {
	case scheduler.ImmediatePriority:
		return SyncLanePriority
	case scheduler.UserBlockingPriority:
		return InputContinuousLanePriority
	case scheduler.NormalPriority, scheduler.LowPriority:
		return DefaultLanePriority
	case scheduler.IdlePriority:
		return IdleLanePriority
	default:
		return NoLanePriority
	}
}

// LanePriorityToSchedulerPriority maps a lane priority to the scheduler
// priority used to run its work. It panics, wrapping ErrInvalidLanePriority,
// if p is not Valid.
func LanePriorityToSchedulerPriority(p LanePriority) scheduler.Priority {
	switch p {
	case SyncLanePriority, SyncBatchedLanePriority:
		return scheduler.ImmediatePriority
	case InputDiscreteHydrationLanePriority, InputDiscreteLanePriority,
		InputContinuousHydrationLanePriority, InputContinuousLanePriority:
		return scheduler.UserBlockingPriority
	case DefaultHydrationLanePriority, DefaultLanePriority,
		TransitionHydrationLanePriority, TransitionLanePriority,
		SelectiveHydrationLanePriority, RetryLanePriority:
		return scheduler.NormalPriority
	case IdleHydrationLanePriority, IdleLanePriority, OffscreenLanePriority:
		return scheduler.IdlePriority
	case NoLanePriority:
		return scheduler.NoPriority
	default:
		panic(fmt.Errorf("%w: %d", ErrInvalidLanePriority, int(p)))
	}
}

// expirationTimeout returns how long after now a lane of priority p is
// considered starved, and whether it can starve at all.
func expirationTimeout(p LanePriority) (int64, bool) {
	switch {
	case p >= InputContinuousLanePriority:
		return 250, true
	case p >= TransitionLanePriority:
		return 5000, true
	default:
		return 0, false
	}
}

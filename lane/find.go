package lane

import (
	"fmt"
)

// updateCascade lists, in descending priority, the bands an update falls
// back to once its own band has no free lane.
var updateCascade = [...]struct {
	priority LanePriority
	lanes    Lanes
}{
	{InputDiscreteLanePriority, InputDiscreteLanes},
	{InputContinuousLanePriority, InputContinuousLanes},
	{DefaultLanePriority, DefaultLanes},
	{TransitionLanePriority, TransitionLanes},
}

// FindUpdateLane picks a lane for an update of the given priority, avoiding
// wipLanes, so as not to interrupt a render in progress.
//
// Input lanes cascade to lower bands when their own is exhausted, down to
// the transition lanes, after which a default lane is reused. Idle updates
// reuse an idle lane instead. Transition and retry lanes must be allocated
// with an Allocator: for those, and any other priority without update
// lanes, FindUpdateLane panics with an error wrapping
// ErrInvalidUpdatePriority.
func FindUpdateLane(priority LanePriority, wipLanes Lanes) Lane {
	switch priority {
	case SyncLanePriority:
		return SyncLane
	case SyncBatchedLanePriority:
		return SyncBatchedLane
	case InputDiscreteLanePriority, InputContinuousLanePriority, DefaultLanePriority:
		start := 0
		for updateCascade[start].priority != priority {
			start++
		}
		for _, b := range updateCascade[start:] {
			if lane := HighestPriorityLane(b.lanes &^ wipLanes); lane != NoLane {
				return lane
			}
		}
		return HighestPriorityLane(DefaultLanes)
	case IdleLanePriority:
		if lane := HighestPriorityLane(IdleLanes &^ wipLanes); lane != NoLane {
			return lane
		}
		return HighestPriorityLane(IdleLanes)
	default:
		panic(fmt.Errorf("%w: %v", ErrInvalidUpdatePriority, priority))
	}
}

// Allocator hands out transition and retry lanes. Each band has a cursor,
// which rotates through the band as lanes are allocated, so consecutive
// allocations spread across the band rather than landing on the same lane.
//
// The zero value is ready to use. An Allocator is not safe for concurrent
// use.
type Allocator struct {
	transitionCursor Lane
	retryCursor      Lane
}

// FindTransitionLane picks a transition lane, preferring one with no
// pending work, then one not in wipLanes, then any.
func (a *Allocator) FindTransitionLane(wipLanes, pendingLanes Lanes) Lane {
	return a.pick(&a.transitionCursor, TransitionLanes, TransitionLanes&^pendingLanes, TransitionLanes&^wipLanes)
}

// FindRetryLane picks a retry lane, preferring one not in wipLanes.
func (a *Allocator) FindRetryLane(wipLanes Lanes) Lane {
	return a.pick(&a.retryCursor, RetryLanes, RetryLanes&^wipLanes)
}

// pick returns a lane from the first non-empty tier, or from the whole band
// if every tier is empty, advancing the band's cursor past it.
func (a *Allocator) pick(cursor *Lane, band Lanes, tiers ...Lanes) Lane {
	candidates := band
	for _, tier := range tiers {
		if tier != NoLanes {
			candidates = tier
			break
		}
	}

	// the first candidate at or after the cursor, wrapping around
	lane := HighestPriorityLane(candidates &^ (*cursor - 1))
	if *cursor == NoLane || lane == NoLane {
		lane = HighestPriorityLane(candidates)
	}

	if next := lane << 1; next&band != NoLanes {
		*cursor = next
	} else {
		*cursor = HighestPriorityLane(band)
	}
	return lane
}

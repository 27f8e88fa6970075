package lane

import (
	"fmt"
)

// RootState is the scheduling state of a Root, see Root.Snapshot.
//
// SuspendedLanes, PingedLanes and ExpiredLanes are subsets of PendingLanes.
// Lanes that are not pending have NoTimestamp event and expiration times,
// and no entanglements.
type RootState struct {
	PendingLanes     Lanes
	SuspendedLanes   Lanes
	PingedLanes      Lanes
	ExpiredLanes     Lanes
	MutableReadLanes Lanes
	EntangledLanes   Lanes

	EventTimes      [TotalLanes]int64
	ExpirationTimes [TotalLanes]int64
	Entanglements   [TotalLanes]Lanes
}

// Root tracks the lanes with pending work against a single root, and
// decides which of them to work on next. The zero value is not usable, use
// NewRoot. A Root is not safe for concurrent use.
type Root struct {
	s RootState
}

// NewRoot returns a Root with no pending work.
func NewRoot() *Root {
	r := new(Root)
	for i := range TotalLanes {
		r.s.EventTimes[i] = NoTimestamp
		r.s.ExpirationTimes[i] = NoTimestamp
	}
	return r
}

// Snapshot returns a copy of the root's state.
func (r *Root) Snapshot() RootState { return r.s }

func (r *Root) PendingLanes() Lanes     { return r.s.PendingLanes }
func (r *Root) SuspendedLanes() Lanes   { return r.s.SuspendedLanes }
func (r *Root) PingedLanes() Lanes      { return r.s.PingedLanes }
func (r *Root) ExpiredLanes() Lanes     { return r.s.ExpiredLanes }
func (r *Root) MutableReadLanes() Lanes { return r.s.MutableReadLanes }
func (r *Root) EntangledLanes() Lanes   { return r.s.EntangledLanes }

// MarkUpdated records an update on lane, made at eventTime. Suspended and
// pinged lanes of equal or lower priority are cleared, since the update may
// unblock them.
func (r *Root) MarkUpdated(lane Lane, eventTime int64) {
	lane &= AllLanes
	if lane == NoLane {
		return
	}
	r.s.PendingLanes |= lane
	higherPriorityLanes := HighestPriorityLane(lane) - 1
	r.s.SuspendedLanes &= higherPriorityLanes
	r.s.PingedLanes &= higherPriorityLanes
	r.s.EventTimes[lane.Index()] = eventTime
}

// MarkSuspended parks the given pending lanes until they are pinged or
// updated. Their expiration times are cleared, suspended work is not
// starved.
func (r *Root) MarkSuspended(lanes Lanes) {
	lanes &= r.s.PendingLanes
	r.s.SuspendedLanes |= lanes
	r.s.PingedLanes &^= lanes
	for index := range lanes.Indexes() {
		r.s.ExpirationTimes[index] = NoTimestamp
	}
}

// MarkPinged flags the given suspended lanes as ready to retry.
func (r *Root) MarkPinged(lanes Lanes) {
	r.s.PingedLanes |= r.s.SuspendedLanes & lanes
}

// MarkExpired forces the given pending lanes to run next, regardless of
// suspension.
func (r *Root) MarkExpired(lanes Lanes) {
	r.s.ExpiredLanes |= lanes & r.s.PendingLanes
}

// MarkDiscreteUpdatesExpired expires every pending input discrete lane.
func (r *Root) MarkDiscreteUpdatesExpired() {
	r.MarkExpired(InputDiscreteLanes)
}

// MarkMutableRead records that work on lane read mutable external state.
func (r *Root) MarkMutableRead(lane Lane) {
	r.s.MutableReadLanes |= lane & r.s.PendingLanes
}

// MarkEntangled constrains the given lanes to be worked on together.
func (r *Root) MarkEntangled(lanes Lanes) {
	lanes &= AllLanes
	r.s.EntangledLanes |= lanes
	for index := range lanes.Indexes() {
		r.s.Entanglements[index] |= lanes
	}
}

// MarkStarvedLanesAsExpired is called on every scheduling decision. Pending
// lanes without a deadline are assigned one, unless they are suspended and
// not pinged, and lanes past their deadline are marked expired.
//
// A lane is therefore only flagged on a call after the one that assigned
// its deadline.
func (r *Root) MarkStarvedLanesAsExpired(now int64) {
	for index, lane := range r.s.PendingLanes.All() {
		expirationTime := r.s.ExpirationTimes[index]
		switch {
		case expirationTime == NoTimestamp:
			if !lane.Includes(r.s.SuspendedLanes) || lane.Includes(r.s.PingedLanes) {
				r.s.ExpirationTimes[index] = computeExpirationTime(lane, now)
			}
		case expirationTime <= now:
			r.s.ExpiredLanes |= lane
		}
	}
}

func computeExpirationTime(lane Lane, now int64) int64 {
	if timeout, ok := expirationTimeout(lane.Priority()); ok {
		return now + timeout
	}
	return NoTimestamp
}

// MarkFinished is called once work has been committed, with the lanes that
// still have work. Bookkeeping for the lanes that are no longer pending is
// reset, and every remaining lane is given another try.
func (r *Root) MarkFinished(remainingLanes Lanes) {
	remainingLanes &= AllLanes
	noLongerPendingLanes := r.s.PendingLanes &^ remainingLanes

	r.s.PendingLanes = remainingLanes
	r.s.SuspendedLanes = NoLanes
	r.s.PingedLanes = NoLanes

	r.s.ExpiredLanes &= remainingLanes
	r.s.MutableReadLanes &= remainingLanes
	r.s.EntangledLanes &= remainingLanes

	for index := range noLongerPendingLanes.Indexes() {
		r.s.Entanglements[index] = NoLanes
		r.s.EventTimes[index] = NoTimestamp
		r.s.ExpirationTimes[index] = NoTimestamp
	}
}

// NextLanes returns the lanes to work on next, and their priority. wipLanes
// are the lanes of a render already in progress, if any.
//
// Expired lanes always win, at SyncLanePriority. Otherwise the highest
// priority unsuspended band is picked, falling back to pinged lanes, with
// idle lanes only considered once no other work is pending. The result is
// widened to every pending lane of equal or higher priority. An in-progress
// render is not interrupted unless the new lanes are strictly higher
// priority, and only its lanes that are still pending are kept. Finally, pending lanes entangled with the result are added.
func (r *Root) NextLanes(wipLanes Lanes) (Lanes, LanePriority) {
	pendingLanes := r.s.PendingLanes
	if pendingLanes == NoLanes {
		return NoLanes, NoLanePriority
	}
	// lanes finished since the render started are not resumed
	wipLanes &= pendingLanes

	var (
		nextLanes        Lanes
		nextLanePriority LanePriority
		suspendedLanes   = r.s.SuspendedLanes
		pingedLanes      = r.s.PingedLanes
	)

	if r.s.ExpiredLanes != NoLanes {
		nextLanes = r.s.ExpiredLanes
		nextLanePriority = SyncLanePriority
	} else if nonIdlePendingLanes := pendingLanes & NonIdleLanes; nonIdlePendingLanes != NoLanes {
		if unblocked := nonIdlePendingLanes &^ suspendedLanes; unblocked != NoLanes {
			nextLanes, nextLanePriority = highestPriorityLanes(unblocked)
		} else {
			nextLanes, nextLanePriority = highestPriorityLanes(nonIdlePendingLanes & pingedLanes)
		}
	} else if unblocked := pendingLanes &^ suspendedLanes; unblocked != NoLanes {
		nextLanes, nextLanePriority = highestPriorityLanes(unblocked)
	} else {
		nextLanes, nextLanePriority = highestPriorityLanes(pingedLanes)
	}

	if nextLanes == NoLanes {
		// everything is suspended
		return NoLanes, NoLanePriority
	}

	nextLanes = pendingLanes & equalOrHigherPriorityLanes(nextLanes)

	if wipLanes != NoLanes && wipLanes != nextLanes && !wipLanes.Includes(suspendedLanes) {
		// keep rendering, unless the new work is strictly more urgent
		if wipLanePriority := wipLanes.Priority(); nextLanePriority <= wipLanePriority {
			nextLanes, nextLanePriority = wipLanes, wipLanePriority
		}
	}

	if entangledLanes := r.s.EntangledLanes; entangledLanes != NoLanes {
		for index := range (nextLanes & entangledLanes).Indexes() {
			nextLanes |= r.s.Entanglements[index] & pendingLanes
		}
	}

	return nextLanes, nextLanePriority
}

// MostRecentEventTime returns the latest event time recorded against any of
// the given lanes, or NoTimestamp.
func (r *Root) MostRecentEventTime(lanes Lanes) int64 {
	mostRecentEventTime := NoTimestamp
	for index := range (lanes & AllLanes).Indexes() {
		mostRecentEventTime = max(mostRecentEventTime, r.s.EventTimes[index])
	}
	return mostRecentEventTime
}

// HighestPriorityPendingLanes returns the pending lanes of the highest
// priority band with pending work, and that band's priority.
func (r *Root) HighestPriorityPendingLanes() (Lanes, LanePriority) {
	return highestPriorityLanes(r.s.PendingLanes)
}

// LanesToRetrySynchronouslyOnError returns the lanes to retry, without
// yielding, after a render failed: every pending lane but OffscreenLane,
// or OffscreenLane if it is all that is pending.
func (r *Root) LanesToRetrySynchronouslyOnError() Lanes {
	if lanes := r.s.PendingLanes &^ OffscreenLane; lanes != NoLanes {
		return lanes
	}
	return r.s.PendingLanes & OffscreenLane
}

// BumpedLaneForHydration returns the hydration lane to use to hydrate ahead
// of renderLanes, or NoLane if there is none, or it is suspended or already
// part of the render.
func (r *Root) BumpedLaneForHydration(renderLanes Lanes) Lane {
	var lane Lane
	switch p := renderLanes.Priority(); p {
	case SyncLanePriority, SyncBatchedLanePriority, OffscreenLanePriority, NoLanePriority:
		lane = NoLane
	case InputDiscreteHydrationLanePriority, InputDiscreteLanePriority:
		lane = InputDiscreteHydrationLane
	case InputContinuousHydrationLanePriority, InputContinuousLanePriority:
		lane = InputContinuousHydrationLane
	case DefaultHydrationLanePriority, DefaultLanePriority:
		lane = DefaultHydrationLane
	case TransitionHydrationLanePriority, TransitionLanePriority, RetryLanePriority:
		lane = TransitionHydrationLane
	case SelectiveHydrationLanePriority:
		lane = SelectiveHydrationLane
	case IdleHydrationLanePriority, IdleLanePriority:
		lane = IdleHydrationLane
	default:
		panic(fmt.Errorf("%w: %d", ErrInvalidLanePriority, int(p)))
	}
	if lane.Includes(r.s.SuspendedLanes | renderLanes) {
		return NoLane
	}
	return lane
}

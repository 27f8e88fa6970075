package scheduler

// HostCallback is the function a Host invokes when it grants the scheduler
// time. It reports whether ready work remains, in which case the host should
// call it again at its next opportunity.
type HostCallback func(hasTimeRemaining bool, now int64) (hasMoreWork bool)

// Host is the embedding environment the scheduler runs inside. It supplies
// the clock, grants time slices, and fires one-shot timeouts.
//
// All methods are called from the goroutine that owns the Scheduler, and a
// Host must invoke callbacks on that same goroutine.
type Host interface {
	// RequestHostCallback asks for cb to be invoked at the next opportunity.
	// There is at most one outstanding request: a new request replaces the
	// previous one.
	RequestHostCallback(cb HostCallback)

	// CancelHostCallback cancels a pending RequestHostCallback, if any.
	CancelHostCallback()

	// RequestHostTimeout asks for cb to be invoked once, after ms
	// milliseconds, with the current time. A new request replaces the
	// previous one.
	RequestHostTimeout(cb func(now int64), ms int64)

	// CancelHostTimeout cancels a pending RequestHostTimeout, if any.
	CancelHostTimeout()

	// ShouldYieldToHost reports whether the current time slice is exhausted.
	ShouldYieldToHost() bool

	// Now returns the current time in milliseconds, from a monotonic clock.
	Now() int64

	// RequestPaint hints that the host should yield for a paint soon.
	RequestPaint()

	// ForceFrameRate adjusts the length of a time slice, to target fps
	// frames per second. Zero restores the default. Values outside [0, 125]
	// are rejected with ErrInvalidFrameRate.
	ForceFrameRate(fps int) error
}

package scheduler

// Callback is a unit of work registered with the scheduler. didTimeout
// reports whether the task had already expired when it was invoked.
//
// Returning a non-nil Callback yields: the task stays at the head of the
// queue, and the returned continuation is invoked when it is resumed.
// Returning nil completes the task.
type Callback func(didTimeout bool) Callback

// Task is a handle to a scheduled callback, see Scheduler.ScheduleCallback.
//
// A task lives in exactly one of the scheduler's heaps. Canceling it only
// clears its callback: the node stays where it is, and is discarded when it
// reaches the top of its heap.
type Task struct {
	callback       Callback
	id             uint64
	priority       Priority
	startTime      int64
	expirationTime int64
	sortIndex      int64
	started        bool
}

// ID returns the task's identifier, unique per scheduler and monotonically
// increasing in scheduling order.
func (t *Task) ID() uint64 { return t.id }

// Priority returns the priority the task was scheduled with.
func (t *Task) Priority() Priority { return t.priority }

// StartTime returns the time at which the task becomes ready to run.
func (t *Task) StartTime() int64 { return t.startTime }

// ExpirationTime returns the time at which the task is considered timed out.
func (t *Task) ExpirationTime() int64 { return t.expirationTime }

// Pending reports whether the task still has a callback to invoke, i.e. it
// was neither canceled nor completed. A task that is currently running is
// not pending, unless it yielded a continuation.
func (t *Task) Pending() bool { return t != nil && t.callback != nil }

// taskLess orders tasks by sortIndex, then by id, so that tasks with equal
// keys run in the order they were scheduled.
func taskLess(a, b *Task) bool {
	if a.sortIndex != b.sortIndex {
		return a.sortIndex < b.sortIndex
	}
	return a.id < b.id
}

package scheduler

import (
	"github.com/joeycumines/go-scheduler/minheap"
	"github.com/joeycumines/logiface"
)

// Scheduler is a cooperative, priority-aware task scheduler. Ready tasks
// are kept in a min-heap ordered by expiration time, and delayed tasks in a
// second min-heap ordered by start time, promoted once they become ready.
//
// A Scheduler is not safe for concurrent use. Every method, and every
// callback the Host invokes, must run on the same goroutine.
type Scheduler struct {
	host    Host
	logger  *logiface.Logger[logiface.Event]
	metrics *metrics

	taskQueue  *minheap.Heap[*Task]
	timerQueue *minheap.Heap[*Task]

	// method values, allocated once
	flushWorkFn     HostCallback
	handleTimeoutFn func(now int64)

	currentTask          *Task
	taskIDCounter        uint64
	currentPriorityLevel Priority

	isSchedulerPaused       bool
	isPerformingWork        bool
	isHostCallbackScheduled bool
	isHostTimeoutScheduled  bool
}

// New creates a Scheduler driven by host.
func New(host Host, opts ...Option) (*Scheduler, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		host:                 host,
		logger:               cfg.logger,
		taskQueue:            minheap.New(taskLess),
		timerQueue:           minheap.New(taskLess),
		currentPriorityLevel: NormalPriority,
	}
	if cfg.metricsEnabled {
		s.metrics = newMetrics()
	}
	s.flushWorkFn = s.flushWork
	s.handleTimeoutFn = s.handleTimeout
	return s, nil
}

// ScheduleCallback registers callback to run at the given priority, and
// returns a handle which may be passed to CancelCallback.
//
// The task's expiration time is its start time plus the priority's timeout,
// see Priority.Timeout. Invalid priorities are treated as NormalPriority.
// Tasks delayed WithDelay wait in the timer heap until
// their start time.
func (s *Scheduler) ScheduleCallback(priority Priority, callback Callback, opts ...CallbackOption) *Task {
	currentTime := s.host.Now()
	cfg := resolveCallbackOptions(opts)

	startTime := currentTime
	if cfg.delay > 0 {
		startTime += cfg.delay
	}

	if !priority.Valid() {
		priority = NormalPriority
	}

	s.taskIDCounter++
	task := &Task{
		id:             s.taskIDCounter,
		callback:       callback,
		priority:       priority,
		startTime:      startTime,
		expirationTime: startTime + priority.Timeout(),
		sortIndex:      -1,
	}
	s.metrics.scheduled()

	if startTime > currentTime {
		// delayed task
		task.sortIndex = startTime
		s.timerQueue.Push(task)
		if first, _ := s.timerQueue.Peek(); s.taskQueue.Len() == 0 && first == task {
			// all tasks are delayed, and this is the earliest
			if s.isHostTimeoutScheduled {
				s.host.CancelHostTimeout()
			} else {
				s.isHostTimeoutScheduled = true
			}
			s.host.RequestHostTimeout(s.handleTimeoutFn, startTime-currentTime)
		}
		s.logTask(s.logger.Debug(), task, `scheduler: delayed task scheduled`)
	} else {
		task.sortIndex = task.expirationTime
		s.taskQueue.Push(task)
		// re-entrant calls are picked up by the running work loop
		if !s.isHostCallbackScheduled && !s.isPerformingWork {
			s.isHostCallbackScheduled = true
			s.host.RequestHostCallback(s.flushWorkFn)
		}
		s.logTask(s.logger.Debug(), task, `scheduler: task scheduled`)
	}

	s.metrics.depths(s.taskQueue.Len(), s.timerQueue.Len())

	return task
}

// CancelCallback prevents a pending task from being invoked. The task stays
// in its heap until it reaches the top, and is then discarded. Canceling a
// nil, completed, or already canceled task has no effect.
func (s *Scheduler) CancelCallback(task *Task) {
	if task == nil || task.callback == nil {
		return
	}
	task.callback = nil
	s.metrics.canceled()
	s.logTask(s.logger.Debug(), task, `scheduler: task canceled`)
}

// ShouldYield reports whether a running callback should return control,
// i.e. whether the host's current time slice is exhausted.
func (s *Scheduler) ShouldYield() bool {
	return s.host.ShouldYieldToHost()
}

// CurrentPriorityLevel returns the ambient priority: the priority of the
// running task, or the level set by RunWithPriority, Next or a wrapped
// callback. It is NormalPriority otherwise.
func (s *Scheduler) CurrentPriorityLevel() Priority {
	return s.currentPriorityLevel
}

// RunWithPriority calls fn with the ambient priority set to priority,
// restoring the previous level when fn returns or panics. Invalid priorities
// are treated as NormalPriority.
func (s *Scheduler) RunWithPriority(priority Priority, fn func()) {
	if !priority.Valid() {
		priority = NormalPriority
	}
	s.withPriority(priority, fn)
}

// Next calls fn with the ambient priority lowered to NormalPriority, if it is
// currently higher. Lower levels are kept.
func (s *Scheduler) Next(fn func()) {
	var priority Priority
	switch s.currentPriorityLevel {
	case ImmediatePriority, UserBlockingPriority, NormalPriority:
		priority = NormalPriority
	default:
		priority = s.currentPriorityLevel
	}
	s.withPriority(priority, fn)
}

// WrapCallback captures the current ambient priority, and returns a function
// which calls fn with that priority restored.
func (s *Scheduler) WrapCallback(fn func()) func() {
	parentPriorityLevel := s.currentPriorityLevel
	return func() {
		s.withPriority(parentPriorityLevel, fn)
	}
}

func (s *Scheduler) withPriority(priority Priority, fn func()) {
	previousPriorityLevel := s.currentPriorityLevel
	s.currentPriorityLevel = priority
	defer func() { s.currentPriorityLevel = previousPriorityLevel }()
	fn()
}

// PauseExecution stops the work loop from starting further tasks, until
// ContinueExecution is called. A paused scheduler releases its host
// callback, so hosts do not spin on work that cannot run. Intended for
// debugging.
func (s *Scheduler) PauseExecution() {
	s.isSchedulerPaused = true
}

// ContinueExecution resumes a scheduler paused by PauseExecution.
func (s *Scheduler) ContinueExecution() {
	s.isSchedulerPaused = false
	if !s.isHostCallbackScheduled && !s.isPerformingWork {
		s.isHostCallbackScheduled = true
		s.host.RequestHostCallback(s.flushWorkFn)
	}
}

// FirstCallbackNode returns the task at the top of the ready heap, which may
// be canceled, or nil if the heap is empty.
func (s *Scheduler) FirstCallbackNode() *Task {
	task, _ := s.taskQueue.Peek()
	return task
}

// Now returns the host's current time, in milliseconds.
func (s *Scheduler) Now() int64 { return s.host.Now() }

// RequestPaint forwards a paint hint to the host.
func (s *Scheduler) RequestPaint() { s.host.RequestPaint() }

// ForceFrameRate adjusts the host's time slice, see Host.ForceFrameRate.
func (s *Scheduler) ForceFrameRate(fps int) error { return s.host.ForceFrameRate(fps) }

// Metrics returns a snapshot of task lifecycle statistics, or nil if the
// scheduler was not created WithMetrics(true). Safe to call from any
// goroutine.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics.snapshot()
}

// advanceTimers moves delayed tasks whose start time has arrived into the
// ready heap, discarding canceled ones.
func (s *Scheduler) advanceTimers(currentTime int64) {
	for {
		timer, ok := s.timerQueue.Peek()
		if !ok {
			return
		}
		switch {
		case timer.callback == nil:
			s.timerQueue.Pop()
		case timer.startTime <= currentTime:
			s.timerQueue.Pop()
			timer.sortIndex = timer.expirationTime
			s.taskQueue.Push(timer)
		default:
			return
		}
	}
}

func (s *Scheduler) handleTimeout(currentTime int64) {
	s.isHostTimeoutScheduled = false
	s.advanceTimers(currentTime)

	if s.isHostCallbackScheduled {
		return
	}
	if s.taskQueue.Len() != 0 {
		s.isHostCallbackScheduled = true
		s.host.RequestHostCallback(s.flushWorkFn)
	} else if first, ok := s.timerQueue.Peek(); ok {
		s.isHostTimeoutScheduled = true
		s.host.RequestHostTimeout(s.handleTimeoutFn, first.startTime-currentTime)
	}
}

// flushWork is the HostCallback the scheduler registers. It reports whether
// ready work remains.
func (s *Scheduler) flushWork(hasTimeRemaining bool, initialTime int64) bool {
	s.isHostCallbackScheduled = false
	if s.isHostTimeoutScheduled {
		// the work loop reschedules it, if still needed
		s.isHostTimeoutScheduled = false
		s.host.CancelHostTimeout()
	}

	s.isPerformingWork = true
	previousPriorityLevel := s.currentPriorityLevel
	defer func() {
		s.currentTask = nil
		s.currentPriorityLevel = previousPriorityLevel
		s.isPerformingWork = false
		s.metrics.depths(s.taskQueue.Len(), s.timerQueue.Len())
	}()

	return s.workLoop(hasTimeRemaining, initialTime)
}

func (s *Scheduler) workLoop(hasTimeRemaining bool, initialTime int64) bool {
	currentTime := initialTime
	s.advanceTimers(currentTime)
	s.currentTask, _ = s.taskQueue.Peek()

	for s.currentTask != nil && !s.isSchedulerPaused {
		task := s.currentTask
		if task.expirationTime > currentTime && (!hasTimeRemaining || s.host.ShouldYieldToHost()) {
			// not expired, and out of time
			break
		}

		if callback := task.callback; callback != nil {
			task.callback = nil
			s.currentPriorityLevel = task.priority
			didUserCallbackTimeout := task.expirationTime <= currentTime
			if !task.started {
				task.started = true
				s.metrics.started(currentTime - task.startTime)
			}

			continuation := s.invoke(task, callback, didUserCallbackTimeout)

			elapsed := -currentTime
			currentTime = s.host.Now()
			elapsed += currentTime

			if continuation != nil {
				task.callback = continuation
				s.metrics.ran(elapsed, true)
				s.logTask(s.logger.Debug(), task, `scheduler: task yielded`)
			} else {
				s.metrics.ran(elapsed, false)
				// the callback may have scheduled more urgent work
				if first, _ := s.taskQueue.Peek(); first == task {
					s.taskQueue.Pop()
				}
			}
			s.advanceTimers(currentTime)
		} else {
			s.taskQueue.Pop()
		}

		s.currentTask, _ = s.taskQueue.Peek()
	}

	if s.isSchedulerPaused {
		// ContinueExecution requests a new host callback
		return false
	}
	if s.currentTask != nil {
		return true
	}
	if first, ok := s.timerQueue.Peek(); ok {
		s.isHostTimeoutScheduled = true
		s.host.RequestHostTimeout(s.handleTimeoutFn, first.startTime-currentTime)
	}
	return false
}

// invoke calls the task's callback. A panic is logged and propagated, after
// the callback slot was cleared, so the task is not retried.
func (s *Scheduler) invoke(task *Task, callback Callback, didTimeout bool) Callback {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.errored()
			s.logCritical(task, r)
			panic(r)
		}
	}()
	return callback(didTimeout)
}

package scheduler

import (
	"math"
	"sync"
	"time"
)

// Metrics is a snapshot of task lifecycle statistics, returned by
// Scheduler.Metrics when the scheduler was created WithMetrics(true).
//
// Wait is measured from a task's start time to its first invocation, and Run
// is the wall time spent inside each callback invocation, continuations
// included. Both are in host time, so they have millisecond resolution.
type Metrics struct {
	// Scheduled counts tasks passed to ScheduleCallback.
	Scheduled uint64
	// Started counts tasks invoked for the first time.
	Started uint64
	// Yielded counts invocations that returned a continuation.
	Yielded uint64
	// Completed counts tasks whose callback returned nil.
	Completed uint64
	// Canceled counts tasks canceled while still pending.
	Canceled uint64
	// Errored counts callbacks that panicked.
	Errored uint64

	Wait  LatencyMetrics
	Run   LatencyMetrics
	Queue QueueMetrics
}

// LatencyMetrics summarizes a latency distribution, with streaming percentile
// estimates.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// QueueMetrics tracks the depth of the ready (task) and delayed (timer)
// heaps, sampled after each change.
type QueueMetrics struct {
	TaskCurrent  int
	TaskMax      int
	TaskAvg      float64
	TimerCurrent int
	TimerMax     int
	TimerAvg     float64
}

// latencyRecorder feeds a LatencyMetrics.
type latencyRecorder struct {
	estimators [3]*pSquareQuantile
	sum        float64
	max        float64
	count      int
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		estimators: [3]*pSquareQuantile{
			newPSquareQuantile(0.50),
			newPSquareQuantile(0.90),
			newPSquareQuantile(0.99),
		},
		max: -math.MaxFloat64,
	}
}

func (l *latencyRecorder) record(ms int64) {
	x := float64(ms)
	l.count++
	l.sum += x
	if x > l.max {
		l.max = x
	}
	for _, e := range l.estimators {
		e.update(x)
	}
}

func (l *latencyRecorder) snapshot() LatencyMetrics {
	if l.count == 0 {
		return LatencyMetrics{}
	}
	toDuration := func(ms float64) time.Duration {
		return time.Duration(ms * float64(time.Millisecond))
	}
	return LatencyMetrics{
		P50:   toDuration(l.estimators[0].quantile()),
		P90:   toDuration(l.estimators[1].quantile()),
		P99:   toDuration(l.estimators[2].quantile()),
		Max:   toDuration(l.max),
		Mean:  toDuration(l.sum / float64(l.count)),
		Count: l.count,
	}
}

// metrics is the mutable state behind Metrics. The scheduler writes from its
// own goroutine, while Scheduler.Metrics may be called from any goroutine.
type metrics struct {
	mu       sync.Mutex
	counters Metrics
	wait     *latencyRecorder
	run      *latencyRecorder
	taskEMA  bool
	timerEMA bool
}

func newMetrics() *metrics {
	return &metrics{
		wait: newLatencyRecorder(),
		run:  newLatencyRecorder(),
	}
}

// The methods below are nil-safe, so call sites need not check whether
// metrics are enabled.

func (m *metrics) scheduled() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters.Scheduled++
	m.mu.Unlock()
}

func (m *metrics) started(wait int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters.Started++
	m.wait.record(wait)
	m.mu.Unlock()
}

func (m *metrics) ran(elapsed int64, yielded bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.run.record(elapsed)
	if yielded {
		m.counters.Yielded++
	} else {
		m.counters.Completed++
	}
	m.mu.Unlock()
}

func (m *metrics) canceled() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters.Canceled++
	m.mu.Unlock()
}

func (m *metrics) errored() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters.Errored++
	m.mu.Unlock()
}

// depths records the heap sizes, with an exponential moving average
// (alpha=0.1) warm-started on the first observation.
func (m *metrics) depths(tasks, timers int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := &m.counters.Queue
	q.TaskCurrent = tasks
	q.TaskMax = max(q.TaskMax, tasks)
	if m.taskEMA {
		q.TaskAvg = 0.9*q.TaskAvg + 0.1*float64(tasks)
	} else {
		q.TaskAvg = float64(tasks)
		m.taskEMA = true
	}
	q.TimerCurrent = timers
	q.TimerMax = max(q.TimerMax, timers)
	if m.timerEMA {
		q.TimerAvg = 0.9*q.TimerAvg + 0.1*float64(timers)
	} else {
		q.TimerAvg = float64(timers)
		m.timerEMA = true
	}
}

func (m *metrics) snapshot() *Metrics {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.counters
	out.Wait = m.wait.snapshot()
	out.Run = m.run.snapshot()
	return &out
}

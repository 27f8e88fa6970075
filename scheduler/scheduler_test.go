package scheduler_test

import (
	"testing"
	"time"

	"github.com/joeycumines/go-scheduler/scheduler"
	"github.com/joeycumines/go-scheduler/scheduler/mockhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, opts ...scheduler.Option) (*scheduler.Scheduler, *mockhost.Host) {
	t.Helper()
	host := mockhost.New()
	s, err := scheduler.New(host, opts...)
	require.NoError(t, err)
	return s, host
}

// yieldCallback returns a callback that logs v and completes.
func yieldCallback(host *mockhost.Host, v any) scheduler.Callback {
	return func(bool) scheduler.Callback {
		host.YieldValue(v)
		return nil
	}
}

func flushAndYield(t *testing.T, host *mockhost.Host) []any {
	t.Helper()
	values, err := host.FlushAndYield()
	require.NoError(t, err)
	return values
}

func TestNew_nilHost(t *testing.T) {
	s, err := scheduler.New(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, scheduler.ErrNilHost)
}

func TestNew_nilOption(t *testing.T) {
	_, err := scheduler.New(mockhost.New(), nil, scheduler.WithMetrics(false))
	require.NoError(t, err)
}

func TestScheduleCallback_expirationTimes(t *testing.T) {
	s, _ := newScheduler(t)
	for _, tc := range [...]struct {
		priority   scheduler.Priority
		expiration int64
		want       scheduler.Priority
	}{
		{scheduler.ImmediatePriority, -1, scheduler.ImmediatePriority},
		{scheduler.UserBlockingPriority, 250, scheduler.UserBlockingPriority},
		{scheduler.NormalPriority, 5000, scheduler.NormalPriority},
		{scheduler.LowPriority, 10000, scheduler.LowPriority},
		{scheduler.IdlePriority, 1073741823, scheduler.IdlePriority},
		{scheduler.NoPriority, 5000, scheduler.NormalPriority},
		{scheduler.Priority(42), 5000, scheduler.NormalPriority},
	} {
		task := s.ScheduleCallback(tc.priority, func(bool) scheduler.Callback { return nil })
		assert.Equal(t, int64(0), task.StartTime(), tc.priority.String())
		assert.Equal(t, tc.expiration, task.ExpirationTime(), tc.priority.String())
		assert.Equal(t, tc.want, task.Priority())
	}
}

func TestScheduleCallback_invalidPriorityRunsAtNormal(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.Priority(42), func(bool) scheduler.Callback {
		host.YieldValue(s.CurrentPriorityLevel())
		return nil
	})
	assert.Equal(t, []any{scheduler.NormalPriority}, flushAndYield(t, host))
}

func TestScheduleCallback_flushesInExpirationOrder(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "Normal"))
	s.ScheduleCallback(scheduler.UserBlockingPriority, yieldCallback(host, "UserBlocking"))
	s.ScheduleCallback(scheduler.ImmediatePriority, yieldCallback(host, "Immediate"))
	s.ScheduleCallback(scheduler.IdlePriority, yieldCallback(host, "Idle"))
	s.ScheduleCallback(scheduler.LowPriority, yieldCallback(host, "Low"))

	assert.Equal(t, []any{"Immediate", "UserBlocking", "Normal", "Low", "Idle"}, flushAndYield(t, host))
	assert.False(t, host.HasPendingCallback())
}

func TestScheduleCallback_fifoWithinPriority(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"))
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "C"))
	assert.Equal(t, []any{"A", "B", "C"}, flushAndYield(t, host))

	task1 := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "D"))
	task2 := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "E"))
	assert.Less(t, task1.ID(), task2.ID())
}

// countingHost counts host callback requests.
type countingHost struct {
	*mockhost.Host
	requests int
}

func (h *countingHost) RequestHostCallback(cb scheduler.HostCallback) {
	h.requests++
	h.Host.RequestHostCallback(cb)
}

func TestScheduleCallback_reentrant(t *testing.T) {
	host := &countingHost{Host: mockhost.New()}
	s, err := scheduler.New(host)
	require.NoError(t, err)

	s.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
		host.YieldValue("A")
		s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host.Host, "C"))
		s.ScheduleCallback(scheduler.UserBlockingPriority, yieldCallback(host.Host, "B"))
		return nil
	})
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host.Host, "D"))
	assert.Equal(t, 1, host.requests)

	// requests made during a flush are picked up by the running loop
	assert.Equal(t, []any{"A", "B", "D", "C"}, flushAndYield(t, host.Host))
	assert.Equal(t, 1, host.requests)
	assert.False(t, host.HasPendingCallback())
}

func TestCancelCallback(t *testing.T) {
	s, host := newScheduler(t)
	a := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"))
	b := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))
	assert.True(t, a.Pending())

	s.CancelCallback(a)
	assert.False(t, a.Pending())
	assert.True(t, b.Pending())

	assert.Equal(t, []any{"B"}, flushAndYield(t, host))
	assert.False(t, b.Pending())

	// after invocation, and repeated, are no-ops
	s.CancelCallback(b)
	s.CancelCallback(a)
	s.CancelCallback(nil)
	assert.Equal(t, []any{}, flushAndYield(t, host))
}

func TestCancelCallback_fromInsideAnotherTask(t *testing.T) {
	s, host := newScheduler(t)
	var b *scheduler.Task
	s.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
		host.YieldValue("A")
		s.CancelCallback(b)
		return nil
	})
	b = s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))
	assert.Equal(t, []any{"A"}, flushAndYield(t, host))
}

func TestContinuation_resumesAfterYield(t *testing.T) {
	s, host := newScheduler(t)
	i := 0
	var work scheduler.Callback
	work = func(bool) scheduler.Callback {
		for i < 5 {
			host.YieldValue(i)
			i++
			if s.ShouldYield() {
				return work
			}
		}
		return nil
	}
	task := s.ScheduleCallback(scheduler.NormalPriority, work)

	require.NoError(t, host.FlushNumberOfYields(2))
	assert.Equal(t, []any{0, 1}, host.ClearYields())
	assert.True(t, task.Pending())
	assert.True(t, host.HasPendingCallback())

	assert.Equal(t, []any{2, 3, 4}, flushAndYield(t, host))
	assert.False(t, task.Pending())
}

func TestContinuation_keepsExpiration(t *testing.T) {
	s, host := newScheduler(t)
	task := s.ScheduleCallback(scheduler.UserBlockingPriority, func(didTimeout bool) scheduler.Callback {
		host.YieldValue("A")
		return func(didTimeout bool) scheduler.Callback {
			host.YieldValue([]any{"B", didTimeout})
			return nil
		}
	})

	require.NoError(t, host.FlushNumberOfYields(1))
	assert.Equal(t, []any{"A"}, host.ClearYields())

	// not expired yet, so no time remaining means no work
	host.AdvanceTime(249)
	require.NoError(t, host.FlushExpired())
	assert.Equal(t, []any{}, host.ClearYields())

	host.AdvanceTime(1)
	require.NoError(t, host.FlushExpired())
	assert.Equal(t, []any{[]any{"B", true}}, host.ClearYields())
	assert.Equal(t, int64(250), task.ExpirationTime())
}

func TestWorkLoop_expiredTasksIgnoreYield(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, func(didTimeout bool) scheduler.Callback {
		host.YieldValue([]any{"A", didTimeout})
		return nil
	})
	s.ScheduleCallback(scheduler.ImmediatePriority, func(didTimeout bool) scheduler.Callback {
		host.YieldValue([]any{"B", didTimeout})
		return nil
	})

	require.NoError(t, host.FlushExpired())
	assert.Equal(t, []any{[]any{"B", true}}, host.ClearYields())

	host.AdvanceTime(5000)
	require.NoError(t, host.FlushExpired())
	assert.Equal(t, []any{[]any{"A", true}}, host.ClearYields())
	assert.False(t, host.HasPendingCallback())
}

func TestWorkLoop_flushUntilNextPaint(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
		host.YieldValue("A")
		s.RequestPaint()
		return nil
	})
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))

	require.NoError(t, host.FlushUntilNextPaint())
	assert.Equal(t, []any{"A"}, host.ClearYields())
	assert.Equal(t, []any{"B"}, flushAndYield(t, host))
}

func TestDelayedTask(t *testing.T) {
	s, host := newScheduler(t)
	a := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"), scheduler.WithDelay(time.Second))
	assert.Equal(t, int64(1000), a.StartTime())
	assert.Equal(t, int64(6000), a.ExpirationTime())
	at, ok := host.PendingTimeout()
	assert.True(t, ok)
	assert.Equal(t, int64(1000), at)
	assert.False(t, host.HasPendingCallback())

	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))
	assert.Equal(t, []any{"B"}, flushAndYield(t, host))

	// the work loop re-requested the timeout on exit
	at, ok = host.PendingTimeout()
	assert.True(t, ok)
	assert.Equal(t, int64(1000), at)

	host.AdvanceTime(999)
	assert.False(t, host.HasPendingCallback())
	host.AdvanceTime(1)
	assert.True(t, host.HasPendingCallback())
	assert.Equal(t, []any{"A"}, flushAndYield(t, host))
}

func TestDelayedTask_earlierReplacesTimeout(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"), scheduler.WithDelay(2*time.Second))
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"), scheduler.WithDelay(time.Second))
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "C"), scheduler.WithDelay(3*time.Second))

	at, _ := host.PendingTimeout()
	assert.Equal(t, int64(1000), at)

	host.AdvanceTime(1000)
	assert.Equal(t, []any{"B"}, flushAndYield(t, host))
	host.AdvanceTime(1000)
	assert.Equal(t, []any{"A"}, flushAndYield(t, host))
	host.AdvanceTime(1000)
	assert.Equal(t, []any{"C"}, flushAndYield(t, host))
	_, ok := host.PendingTimeout()
	assert.False(t, ok)
}

func TestDelayedTask_canceled(t *testing.T) {
	s, host := newScheduler(t)
	a := s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"), scheduler.WithDelay(time.Second))
	s.CancelCallback(a)
	host.AdvanceTime(1000)
	assert.False(t, host.HasPendingCallback())
	assert.Nil(t, s.FirstCallbackNode())
}

func TestDelayedTask_promotedByExpiration(t *testing.T) {
	s, host := newScheduler(t)
	// delayed tasks are ordered by expiration once ready
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"), scheduler.WithDelay(100*time.Millisecond))
	s.ScheduleCallback(scheduler.UserBlockingPriority, yieldCallback(host, "B"), scheduler.WithDelay(200*time.Millisecond))
	host.AdvanceTime(200)
	assert.Equal(t, []any{"B", "A"}, flushAndYield(t, host))
}

func TestRunWithPriority(t *testing.T) {
	s, _ := newScheduler(t)
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())

	var inner []scheduler.Priority
	s.RunWithPriority(scheduler.UserBlockingPriority, func() {
		inner = append(inner, s.CurrentPriorityLevel())
		s.RunWithPriority(scheduler.IdlePriority, func() {
			inner = append(inner, s.CurrentPriorityLevel())
		})
		inner = append(inner, s.CurrentPriorityLevel())
	})
	s.RunWithPriority(scheduler.Priority(99), func() {
		inner = append(inner, s.CurrentPriorityLevel())
	})
	assert.Equal(t, []scheduler.Priority{
		scheduler.UserBlockingPriority,
		scheduler.IdlePriority,
		scheduler.UserBlockingPriority,
		scheduler.NormalPriority,
	}, inner)
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())
}

func TestRunWithPriority_restoresOnPanic(t *testing.T) {
	s, _ := newScheduler(t)
	assert.PanicsWithValue(t, "boom", func() {
		s.RunWithPriority(scheduler.ImmediatePriority, func() { panic("boom") })
	})
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())
}

func TestNext(t *testing.T) {
	s, _ := newScheduler(t)
	for _, tc := range [...]struct {
		from, want scheduler.Priority
	}{
		{scheduler.ImmediatePriority, scheduler.NormalPriority},
		{scheduler.UserBlockingPriority, scheduler.NormalPriority},
		{scheduler.NormalPriority, scheduler.NormalPriority},
		{scheduler.LowPriority, scheduler.LowPriority},
		{scheduler.IdlePriority, scheduler.IdlePriority},
	} {
		var got scheduler.Priority
		s.RunWithPriority(tc.from, func() {
			s.Next(func() { got = s.CurrentPriorityLevel() })
			assert.Equal(t, tc.from, s.CurrentPriorityLevel())
		})
		assert.Equal(t, tc.want, got, tc.from.String())
	}
}

func TestWrapCallback(t *testing.T) {
	s, _ := newScheduler(t)
	var wrapped func()
	var got scheduler.Priority
	s.RunWithPriority(scheduler.UserBlockingPriority, func() {
		wrapped = s.WrapCallback(func() { got = s.CurrentPriorityLevel() })
	})
	s.RunWithPriority(scheduler.IdlePriority, wrapped)
	assert.Equal(t, scheduler.UserBlockingPriority, got)
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())
}

func TestCurrentPriorityLevel_insideTask(t *testing.T) {
	s, host := newScheduler(t)
	for _, p := range [...]scheduler.Priority{scheduler.IdlePriority, scheduler.ImmediatePriority, scheduler.LowPriority} {
		s.ScheduleCallback(p, func(bool) scheduler.Callback {
			host.YieldValue(s.CurrentPriorityLevel())
			return nil
		})
	}
	assert.Equal(t, []any{scheduler.ImmediatePriority, scheduler.LowPriority, scheduler.IdlePriority}, flushAndYield(t, host))
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())
}

func TestPauseExecution(t *testing.T) {
	s, host := newScheduler(t)
	s.PauseExecution()
	s.ScheduleCallback(scheduler.ImmediatePriority, yieldCallback(host, "A"))

	require.NoError(t, host.FlushExpired())
	assert.Equal(t, []any{}, host.ClearYields())
	// released while paused
	assert.False(t, host.HasPendingCallback())

	s.ContinueExecution()
	assert.True(t, host.HasPendingCallback())
	assert.Equal(t, []any{"A"}, flushAndYield(t, host))
}

func TestPauseExecution_flushAllReturns(t *testing.T) {
	s, host := newScheduler(t)
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"))
	s.PauseExecution()
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))

	ok, err := host.FlushAllWithoutAsserting()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{}, host.ClearYields())
	assert.False(t, host.HasPendingCallback())
	require.NoError(t, host.FlushAll())

	s.ContinueExecution()
	assert.Equal(t, []any{"A", "B"}, flushAndYield(t, host))
}

func TestFirstCallbackNode(t *testing.T) {
	s, host := newScheduler(t)
	assert.Nil(t, s.FirstCallbackNode())
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "A"))
	b := s.ScheduleCallback(scheduler.UserBlockingPriority, yieldCallback(host, "B"))
	assert.Same(t, b, s.FirstCallbackNode())
	flushAndYield(t, host)
	assert.Nil(t, s.FirstCallbackNode())
}

func TestCallbackPanic_propagates(t *testing.T) {
	s, host := newScheduler(t, scheduler.WithMetrics(true))
	a := s.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
		host.YieldValue("A")
		panic("boom")
	})
	s.ScheduleCallback(scheduler.NormalPriority, yieldCallback(host, "B"))

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = host.FlushAllWithoutAsserting()
	})
	assert.Equal(t, []any{"A"}, host.ClearYields())
	assert.False(t, a.Pending())
	assert.Equal(t, scheduler.NormalPriority, s.CurrentPriorityLevel())

	// the failed task is not retried, and the rest still runs
	assert.Equal(t, []any{"B"}, flushAndYield(t, host))
	assert.Equal(t, uint64(1), s.Metrics().Errored)
}

func TestForceFrameRate(t *testing.T) {
	s, host := newScheduler(t)
	require.NoError(t, s.ForceFrameRate(60))
	assert.Equal(t, 60, host.FrameRate())
	assert.ErrorIs(t, s.ForceFrameRate(126), scheduler.ErrInvalidFrameRate)
	assert.ErrorIs(t, s.ForceFrameRate(-1), scheduler.ErrInvalidFrameRate)
	require.NoError(t, s.ForceFrameRate(0))
	assert.Equal(t, 0, host.FrameRate())
}

func TestNow(t *testing.T) {
	s, host := newScheduler(t)
	host.AdvanceTime(42)
	assert.Equal(t, int64(42), s.Now())
}

func TestMetrics(t *testing.T) {
	s, _ := newScheduler(t)
	assert.Nil(t, s.Metrics())

	s, host := newScheduler(t, scheduler.WithMetrics(true))
	steps := 0
	var work scheduler.Callback
	work = func(bool) scheduler.Callback {
		host.AdvanceTime(10)
		steps++
		if steps < 3 {
			return work
		}
		return nil
	}
	s.ScheduleCallback(scheduler.NormalPriority, work)
	canceled := s.ScheduleCallback(scheduler.NormalPriority, work)
	s.ScheduleCallback(scheduler.LowPriority, func(bool) scheduler.Callback { return nil }, scheduler.WithDelay(time.Second))
	s.CancelCallback(canceled)

	m := s.Metrics()
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Queue.TaskCurrent)
	assert.Equal(t, 1, m.Queue.TimerCurrent)

	_, err := host.FlushAllWithoutAsserting()
	require.NoError(t, err)
	host.AdvanceTime(1000)
	_, err = host.FlushAllWithoutAsserting()
	require.NoError(t, err)

	m = s.Metrics()
	assert.Equal(t, uint64(3), m.Scheduled)
	assert.Equal(t, uint64(2), m.Started)
	assert.Equal(t, uint64(2), m.Yielded)
	assert.Equal(t, uint64(2), m.Completed)
	assert.Equal(t, uint64(1), m.Canceled)
	assert.Equal(t, uint64(0), m.Errored)
	assert.Equal(t, 4, m.Run.Count)
	assert.Equal(t, 10*time.Millisecond, m.Run.Max)
	assert.Equal(t, 2, m.Wait.Count)
	assert.Equal(t, 0, m.Queue.TaskCurrent)
	assert.Equal(t, 0, m.Queue.TimerCurrent)
	assert.Equal(t, 2, m.Queue.TaskMax)
}

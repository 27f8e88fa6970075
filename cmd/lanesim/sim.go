package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-scheduler/lane"
	"github.com/joeycumines/go-scheduler/minheap"
	"github.com/joeycumines/go-scheduler/scheduler"
	"github.com/joeycumines/go-scheduler/scheduler/loophost"
	"github.com/joeycumines/go-scheduler/scheduler/mockhost"
	"github.com/joeycumines/go-scheduler/workloop"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

const (
	realtimePollInterval = 10 * time.Millisecond
	shutdownTimeout      = 5 * time.Second
)

// simulation replays a scenario, printing a line per render event.
type simulation struct {
	out      io.Writer
	logger   *logiface.Logger[logiface.Event]
	scenario *scenario
	sched    *scheduler.Scheduler
	work     *workloop.WorkLoop
	roots    []*simRoot

	// spend blocks a renderer for ms of simulated time
	spend func(ms int64)
	// after runs fn once the scenario time reaches t
	after func(t int64, fn func())

	pending int
}

// simRoot renders a root as a fixed number of work units.
type simRoot struct {
	sim  *simulation
	spec rootSpec
	root *workloop.Root

	lanes    lane.Lanes
	progress int
	commits  int

	// lanes whose data is not yet available
	blocked lane.Lanes
}

func newSimulation(host scheduler.Host, sc *scenario, out io.Writer, logger *logiface.Logger[logiface.Event]) (*simulation, error) {
	sched, err := scheduler.New(host, scheduler.WithLogger(logger), scheduler.WithMetrics(true))
	if err != nil {
		return nil, err
	}
	work, err := workloop.New(sched, workloop.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s := &simulation{
		out:      out,
		logger:   logger,
		scenario: sc,
		sched:    sched,
		work:     work,
	}
	for _, spec := range sc.roots {
		r := &simRoot{sim: s, spec: spec}
		if r.root, err = work.NewRoot(r); err != nil {
			return nil, err
		}
		s.roots = append(s.roots, r)
	}
	return s, nil
}

func (s *simulation) start() {
	for _, u := range s.scenario.updates {
		s.after(u.at, func() { s.update(u) })
	}
}

// idle reports whether every event has run, and no root has work scheduled.
// Suspended lanes that are never pinged do not count.
func (s *simulation) idle() bool {
	if s.pending != 0 {
		return false
	}
	for _, r := range s.roots {
		if r.root.CallbackPriority() != lane.NoLanePriority {
			return false
		}
	}
	return true
}

func (s *simulation) record(r *simRoot, action string, lanes lane.Lanes) {
	_, _ = fmt.Fprintf(s.out, "%6d  %-12s %-8s %v\n", s.sched.Now(), r.spec.name, action, lanes)
}

func (s *simulation) update(u updateSpec) {
	r := s.roots[u.root]
	request := func() {
		l := s.work.RequestUpdateLane(r.root, workloop.UpdateContext{
			Sync:       u.kind == kindSync,
			Transition: u.kind == kindTransition,
		})
		if u.suspendFor > 0 {
			r.blocked |= l
			s.after(u.at+u.suspendFor, func() { s.ping(r, l) })
		}
		s.record(r, `update`, l)
		if err := s.work.ScheduleUpdate(r.root, l, s.work.RequestEventTime()); err != nil {
			s.logger.Err().
				Err(err).
				Str(`root`, r.spec.name).
				Log(`lanesim: update dropped`)
		}
	}
	switch u.kind {
	case kindDiscrete:
		s.work.DiscreteUpdates(request)
	case kindTransition:
		s.work.StartTransition(request)
	case kindPriority:
		s.sched.RunWithPriority(u.priority, request)
	default:
		request()
	}
}

func (s *simulation) ping(r *simRoot, l lane.Lane) {
	r.blocked &^= l
	s.record(r, `ping`, l)
	s.work.PingSuspendedRoot(r.root, l)
}

func (s *simulation) report() {
	_, _ = fmt.Fprintf(s.out, "%6d  done\n", s.sched.Now())
	for _, r := range s.roots {
		_, _ = fmt.Fprintf(s.out, "%s: %d commits, pending %v\n", r.spec.name, r.commits, r.root.State().PendingLanes)
	}
	if m := s.sched.Metrics(); m != nil {
		s.logger.Info().
			Uint64(`scheduled`, m.Scheduled).
			Uint64(`completed`, m.Completed).
			Uint64(`yielded`, m.Yielded).
			Uint64(`canceled`, m.Canceled).
			Dur(`wait_p50`, m.Wait.P50).
			Dur(`wait_p99`, m.Wait.P99).
			Dur(`run_max`, m.Run.Max).
			Log(`lanesim: scheduler metrics`)
	}
}

func (r *simRoot) Render(lanes lane.Lanes, shouldYield func() bool) (workloop.RenderStatus, error) {
	if lanes != r.lanes {
		if r.lanes != lane.NoLanes {
			r.sim.record(r, `restart`, lanes)
		} else {
			r.sim.record(r, `render`, lanes)
		}
		r.lanes, r.progress = lanes, 0
	}

	if lanes.Includes(r.blocked) {
		r.lanes = lane.NoLanes
		r.sim.record(r, `suspend`, lanes&r.blocked)
		return workloop.RenderSuspended, nil
	}

	for r.progress < r.spec.work {
		r.sim.spend(r.spec.unitMS)
		r.progress++
		if r.progress < r.spec.work && shouldYield() {
			r.sim.record(r, `yield`, lanes)
			return workloop.RenderIncomplete, nil
		}
	}

	r.lanes = lane.NoLanes
	return workloop.RenderCompleted, nil
}

func (r *simRoot) Commit(lanes lane.Lanes) lane.Lanes {
	r.commits++
	r.sim.record(r, `commit`, lanes)
	return lane.NoLanes
}

type event struct {
	at  int64
	seq int
	fn  func()
}

func eventLess(a, b *event) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

// runVirtual replays the scenario on virtual time, as fast as possible.
// Renders yield after every work unit, giving events a chance to interrupt
// them.
func runVirtual(sc *scenario, out io.Writer, logger *logiface.Logger[logiface.Event]) error {
	host := mockhost.New()
	if err := host.ForceFrameRate(sc.frameRate); err != nil {
		return err
	}
	s, err := newSimulation(host, sc, out, logger)
	if err != nil {
		return err
	}

	events := minheap.New(eventLess)
	var seq int
	s.spend = func(ms int64) {
		host.AdvanceTime(ms)
		host.YieldValue(ms)
	}
	s.after = func(t int64, fn func()) {
		seq++
		s.pending++
		events.Push(&event{at: t, seq: seq, fn: fn})
	}
	s.start()

	for {
		if ev, ok := events.Peek(); ok && ev.at <= host.Now() {
			events.Pop()
			s.pending--
			ev.fn()
			continue
		}

		if host.HasPendingCallback() {
			host.ClearYields()
			if err := host.FlushNumberOfYields(1); err != nil {
				return err
			}
			continue
		}

		next := int64(-1)
		if ev, ok := events.Peek(); ok {
			next = ev.at
		}
		if t, ok := host.PendingTimeout(); ok && (next < 0 || t < next) {
			next = t
		}
		if next < 0 {
			break
		}
		host.AdvanceTime(next - host.Now())
	}

	s.report()
	return nil
}

// runRealtime replays the scenario on an event loop, in wall clock time.
// Work units block the loop for their duration.
func runRealtime(ctx context.Context, sc *scenario, out io.Writer, logger *logiface.Logger[logiface.Event]) error {
	loop, err := eventloop.New()
	if err != nil {
		return err
	}
	host, err := loophost.New(loop, loophost.WithLogger(logger), loophost.WithFrameRate(sc.frameRate))
	if err != nil {
		return err
	}
	s, err := newSimulation(host, sc, out, logger)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var (
		finished bool
		timerErr error
	)
	finish := func(err error) {
		if !finished {
			finished, timerErr = true, err
			close(done)
		}
	}

	s.spend = func(ms int64) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
	s.after = func(t int64, fn func()) {
		s.pending++
		delay := max(time.Duration(t-host.Now())*time.Millisecond, 0)
		if _, err := loop.ScheduleTimer(delay, func() {
			s.pending--
			fn()
		}); err != nil {
			finish(fmt.Errorf("lanesim: schedule event: %w", err))
		}
	}

	var poll func()
	poll = func() {
		if s.idle() {
			s.report()
			finish(nil)
			return
		}
		if _, err := loop.ScheduleTimer(realtimePollInterval, poll); err != nil {
			finish(fmt.Errorf("lanesim: schedule poll: %w", err))
		}
	}

	// runs once the loop starts
	if err := loop.Submit(func() {
		s.start()
		poll()
	}); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := loop.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// done was closed on the loop, which has since stopped
		return timerErr
	})

	return g.Wait()
}

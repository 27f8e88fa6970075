// Package loophost implements a scheduler.Host on top of a
// github.com/joeycumines/go-eventloop Loop.
//
// Host callbacks run as loop tasks, each with a time slice of 5ms by default,
// and host timeouts are loop timers. Between slices the loop is free to run
// other tasks, timers and I/O callbacks.
//
// Every Host method, and every method of a Scheduler using it, must be
// called on the loop goroutine. Other goroutines submit work with
// Loop.Submit.
package loophost

import (
	"errors"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-scheduler/scheduler"
	"github.com/joeycumines/logiface"
)

// DefaultYieldInterval is the length of a time slice, unless changed with
// ForceFrameRate.
const DefaultYieldInterval = 5 * time.Millisecond

// ErrNilLoop is returned by New when no Loop is provided.
var ErrNilLoop = errors.New("loophost: nil loop")

// Host is a scheduler.Host driven by an event loop.
type Host struct {
	loop   *eventloop.Loop
	logger *logiface.Logger[logiface.Event]
	anchor time.Time

	scheduledCallback scheduler.HostCallback
	yieldInterval     time.Duration
	deadline          time.Time

	timeoutID  eventloop.TimerID
	timeoutGen uint64

	messageLoopRunning bool
	hasTimeout         bool
	needsPaint         bool
}

var _ scheduler.Host = (*Host)(nil)

// New creates a Host which runs on loop. The loop need not be running yet.
func New(loop *eventloop.Loop, opts ...Option) (*Host, error) {
	if loop == nil {
		return nil, ErrNilLoop
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	h := &Host{
		loop:          loop,
		logger:        cfg.logger,
		anchor:        time.Now(),
		yieldInterval: DefaultYieldInterval,
	}
	if cfg.frameRate > 0 {
		h.yieldInterval = frameInterval(cfg.frameRate)
	}
	return h, nil
}

// RequestHostCallback implements scheduler.Host. The callback is run by a
// loop task, and re-run by a new task for as long as it reports more work.
func (h *Host) RequestHostCallback(cb scheduler.HostCallback) {
	h.scheduledCallback = cb
	if !h.messageLoopRunning {
		h.messageLoopRunning = true
		h.post()
	}
}

// CancelHostCallback implements scheduler.Host.
func (h *Host) CancelHostCallback() {
	h.scheduledCallback = nil
}

func (h *Host) post() {
	if err := h.loop.Submit(h.performWorkUntilDeadline); err != nil {
		h.messageLoopRunning = false
		h.logger.Err().
			Err(err).
			Log(`loophost: dropped host callback`)
	}
}

func (h *Host) performWorkUntilDeadline() {
	cb := h.scheduledCallback
	if cb == nil {
		h.messageLoopRunning = false
		return
	}

	now := h.Now()
	h.deadline = time.Now().Add(h.yieldInterval)
	h.needsPaint = false

	// a panicking callback still has work, the panic is the loop's to report
	hasMoreWork := true
	defer func() {
		if hasMoreWork {
			h.post()
		} else {
			h.messageLoopRunning = false
			h.scheduledCallback = nil
		}
	}()
	hasMoreWork = cb(true, now)
}

// RequestHostTimeout implements scheduler.Host, using a loop timer.
func (h *Host) RequestHostTimeout(cb func(now int64), ms int64) {
	h.CancelHostTimeout()

	h.timeoutGen++
	gen := h.timeoutGen
	id, err := h.loop.ScheduleTimer(time.Duration(ms)*time.Millisecond, func() {
		if gen != h.timeoutGen || !h.hasTimeout {
			return
		}
		h.hasTimeout = false
		cb(h.Now())
	})
	if err != nil {
		h.logger.Err().
			Err(err).
			Int64(`ms`, ms).
			Log(`loophost: dropped host timeout`)
		return
	}
	h.timeoutID = id
	h.hasTimeout = true
}

// CancelHostTimeout implements scheduler.Host.
func (h *Host) CancelHostTimeout() {
	if !h.hasTimeout {
		return
	}
	h.hasTimeout = false
	h.timeoutGen++
	if err := h.loop.CancelTimer(h.timeoutID); err != nil {
		h.logger.Debug().
			Err(err).
			Log(`loophost: cancel host timeout`)
	}
}

// ShouldYieldToHost implements scheduler.Host. It reports true once the
// time slice has elapsed, or a paint was requested.
func (h *Host) ShouldYieldToHost() bool {
	return h.needsPaint || !time.Now().Before(h.deadline)
}

// Now implements scheduler.Host, returning the milliseconds elapsed since
// the Host was created.
func (h *Host) Now() int64 {
	return time.Since(h.anchor).Milliseconds()
}

// RequestPaint implements scheduler.Host, ending the current slice early.
func (h *Host) RequestPaint() {
	h.needsPaint = true
}

// ForceFrameRate implements scheduler.Host. A positive fps sets the slice
// length to 1000/fps milliseconds, zero restores DefaultYieldInterval.
func (h *Host) ForceFrameRate(fps int) error {
	if !validFrameRate(fps) {
		h.logger.Err().
			Int(`fps`, fps).
			Log(`loophost: forcing frame rates higher than 125 fps is not supported`)
		return scheduler.ErrInvalidFrameRate
	}
	if fps > 0 {
		h.yieldInterval = frameInterval(fps)
	} else {
		h.yieldInterval = DefaultYieldInterval
	}
	return nil
}

// YieldInterval returns the current time slice length.
func (h *Host) YieldInterval() time.Duration {
	return h.yieldInterval
}

func validFrameRate(fps int) bool {
	return fps >= 0 && fps <= 125
}

func frameInterval(fps int) time.Duration {
	return time.Duration(1000/fps) * time.Millisecond
}

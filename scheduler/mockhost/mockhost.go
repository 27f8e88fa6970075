// Package mockhost implements a scheduler.Host on virtual time, for
// deterministic tests and simulations.
//
// Time only moves when AdvanceTime is called, and scheduled work only runs
// when one of the Flush methods is called. Callbacks record progress with
// YieldValue, and the log is inspected with ClearYields.
package mockhost

import (
	"errors"

	"github.com/joeycumines/go-scheduler/scheduler"
)

var (
	// ErrAlreadyFlushing is returned when a Flush method or Reset is called
	// from inside a flush.
	ErrAlreadyFlushing = errors.New("mockhost: already flushing work")

	// ErrLogNotEmpty is returned by FlushAll and FlushAndYield if yielded
	// values from a previous flush were not cleared.
	ErrLogNotEmpty = errors.New("mockhost: log is not empty, clear the yielded values before flushing additional work")

	// ErrUnexpectedYield is returned by FlushAll if something yielded a
	// value while flushing.
	ErrUnexpectedYield = errors.New("mockhost: something yielded a value while flushing work")
)

// Host is a virtual-time scheduler.Host. The zero value is not usable, use
// New. It is not safe for concurrent use.
type Host struct {
	scheduledCallback      scheduler.HostCallback
	scheduledTimeout       func(now int64)
	yieldedValues          []any
	currentTime            int64
	timeoutTime            int64
	expectedNumberOfYields int
	frameRate              int
	didStop                bool
	isFlushing             bool
	needsPaint             bool
	shouldYieldForPaint    bool
}

var _ scheduler.Host = (*Host)(nil)

// New returns a Host with the clock at zero.
func New() *Host {
	h := new(Host)
	h.reset()
	return h
}

// RequestHostCallback implements scheduler.Host.
func (h *Host) RequestHostCallback(cb scheduler.HostCallback) {
	h.scheduledCallback = cb
}

// CancelHostCallback implements scheduler.Host.
func (h *Host) CancelHostCallback() {
	h.scheduledCallback = nil
}

// RequestHostTimeout implements scheduler.Host. The timeout fires from
// AdvanceTime.
func (h *Host) RequestHostTimeout(cb func(now int64), ms int64) {
	h.scheduledTimeout = cb
	h.timeoutTime = h.currentTime + ms
}

// CancelHostTimeout implements scheduler.Host.
func (h *Host) CancelHostTimeout() {
	h.scheduledTimeout = nil
	h.timeoutTime = -1
}

// ShouldYieldToHost implements scheduler.Host. It reports true once the
// number of yields expected by FlushNumberOfYields is reached, or when a
// paint was requested during FlushUntilNextPaint.
func (h *Host) ShouldYieldToHost() bool {
	if (h.expectedNumberOfYields != -1 && len(h.yieldedValues) >= h.expectedNumberOfYields) ||
		(h.shouldYieldForPaint && h.needsPaint) {
		h.didStop = true
		return true
	}
	return false
}

// Now implements scheduler.Host, returning the virtual time.
func (h *Host) Now() int64 { return h.currentTime }

// RequestPaint implements scheduler.Host.
func (h *Host) RequestPaint() { h.needsPaint = true }

// ForceFrameRate implements scheduler.Host. The frame rate is validated and
// recorded, but has no effect on virtual time.
func (h *Host) ForceFrameRate(fps int) error {
	if fps < 0 || fps > 125 {
		return scheduler.ErrInvalidFrameRate
	}
	h.frameRate = fps
	return nil
}

// FrameRate returns the frame rate last set by ForceFrameRate, zero meaning
// the default.
func (h *Host) FrameRate() int { return h.frameRate }

// HasPendingCallback reports whether a host callback is scheduled.
func (h *Host) HasPendingCallback() bool { return h.scheduledCallback != nil }

// PendingTimeout returns the virtual time at which the scheduled timeout
// fires, and whether there is one.
func (h *Host) PendingTimeout() (int64, bool) {
	return h.timeoutTime, h.scheduledTimeout != nil
}

// Reset restores the initial state, dropping any scheduled work.
func (h *Host) Reset() error {
	if h.isFlushing {
		return ErrAlreadyFlushing
	}
	h.reset()
	return nil
}

func (h *Host) reset() {
	h.currentTime = 0
	h.scheduledCallback = nil
	h.scheduledTimeout = nil
	h.timeoutTime = -1
	h.yieldedValues = nil
	h.expectedNumberOfYields = -1
	h.didStop = false
	h.isFlushing = false
	h.needsPaint = false
	h.shouldYieldForPaint = false
}

// FlushNumberOfYields runs scheduled work until count values have been
// yielded, or there is no more work.
func (h *Host) FlushNumberOfYields(count int) error {
	if h.isFlushing {
		return ErrAlreadyFlushing
	}
	if h.scheduledCallback == nil {
		return nil
	}
	h.expectedNumberOfYields = count
	defer func() { h.expectedNumberOfYields = -1 }()
	h.flush(true, true)
	return nil
}

// FlushUntilNextPaint runs scheduled work until a callback requests a
// paint, or there is no more work.
func (h *Host) FlushUntilNextPaint() error {
	if h.isFlushing {
		return ErrAlreadyFlushing
	}
	if h.scheduledCallback == nil {
		return nil
	}
	h.shouldYieldForPaint = true
	h.needsPaint = false
	defer func() { h.shouldYieldForPaint = false }()
	h.flush(true, true)
	return nil
}

// FlushExpired invokes the host callback once with no time remaining, which
// runs only the tasks that have already expired.
func (h *Host) FlushExpired() error {
	if h.isFlushing {
		return ErrAlreadyFlushing
	}
	if h.scheduledCallback == nil {
		return nil
	}
	h.flush(false, false)
	return nil
}

// FlushAllWithoutAsserting runs scheduled work until there is none left. It
// reports whether there was any work to run.
func (h *Host) FlushAllWithoutAsserting() (bool, error) {
	if h.isFlushing {
		return false, ErrAlreadyFlushing
	}
	if h.scheduledCallback == nil {
		return false, nil
	}
	h.flush(true, false)
	return true, nil
}

// FlushAll is FlushAllWithoutAsserting, but fails if the yield log was not
// empty beforehand, or if anything was yielded while flushing.
func (h *Host) FlushAll() error {
	if len(h.yieldedValues) != 0 {
		return ErrLogNotEmpty
	}
	if _, err := h.FlushAllWithoutAsserting(); err != nil {
		return err
	}
	if len(h.yieldedValues) != 0 {
		return ErrUnexpectedYield
	}
	return nil
}

// FlushAndYield runs all scheduled work, and returns the values yielded
// while doing so. The log must be empty beforehand.
func (h *Host) FlushAndYield() ([]any, error) {
	if len(h.yieldedValues) != 0 {
		return nil, ErrLogNotEmpty
	}
	if _, err := h.FlushAllWithoutAsserting(); err != nil {
		return nil, err
	}
	return h.ClearYields(), nil
}

// flush calls the scheduled callback until it reports no more work, or, if
// stoppable, until ShouldYieldToHost has stopped it. If the callback
// panics, it stays scheduled, and the panic propagates.
func (h *Host) flush(hasTimeRemaining, stoppable bool) {
	cb := h.scheduledCallback
	h.isFlushing = true
	defer func() {
		h.didStop = false
		h.isFlushing = false
	}()
	for {
		hasMoreWork := cb(hasTimeRemaining, h.currentTime)
		if !hasMoreWork {
			h.scheduledCallback = nil
			return
		}
		if !hasTimeRemaining || (stoppable && h.didStop) {
			return
		}
	}
}

// YieldValue appends v to the yield log.
func (h *Host) YieldValue(v any) {
	h.yieldedValues = append(h.yieldedValues, v)
}

// ClearYields returns and clears the yield log. It never returns nil.
func (h *Host) ClearYields() []any {
	values := h.yieldedValues
	h.yieldedValues = nil
	if values == nil {
		values = []any{}
	}
	return values
}

// AdvanceTime moves the virtual clock forward by ms, firing the scheduled
// timeout if it is due.
func (h *Host) AdvanceTime(ms int64) {
	h.currentTime += ms
	if h.scheduledTimeout != nil && h.timeoutTime <= h.currentTime {
		cb := h.scheduledTimeout
		h.scheduledTimeout = nil
		h.timeoutTime = -1
		cb(h.currentTime)
	}
}

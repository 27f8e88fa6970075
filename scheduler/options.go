package scheduler

import (
	"time"

	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger         *logiface.Logger[logiface.Event]
	metricsEnabled bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger sets the structured logger used by the Scheduler.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables task lifecycle metrics, accessible via
// Scheduler.Metrics. Disabled by default.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// CallbackOption configures a single ScheduleCallback call.
type CallbackOption interface {
	applyCallback(*callbackOptions)
}

type callbackOptions struct {
	delay int64
}

type callbackOptionImpl struct {
	applyCallbackFunc func(*callbackOptions)
}

func (o *callbackOptionImpl) applyCallback(opts *callbackOptions) {
	o.applyCallbackFunc(opts)
}

// WithDelay defers the task until d has elapsed, at millisecond resolution.
// Non-positive delays are ignored.
func WithDelay(d time.Duration) CallbackOption {
	return &callbackOptionImpl{func(opts *callbackOptions) {
		opts.delay = d.Milliseconds()
	}}
}

func resolveCallbackOptions(opts []CallbackOption) callbackOptions {
	var cfg callbackOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyCallback(&cfg)
		}
	}
	return cfg
}

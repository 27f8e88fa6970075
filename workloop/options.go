package workloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-scheduler/lane"
	"github.com/joeycumines/logiface"
)

// ErrorHandler is called when rendering a root failed, including the
// synchronous retry. The lanes are finished once it returns.
type ErrorHandler func(root *Root, lanes lane.Lanes, err error)

// DefaultStarvationReportRates limits starvation warnings to one per
// second, and ten per minute, for each lane of each root.
var DefaultStarvationReportRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

// workLoopOptions holds configuration options for WorkLoop creation.
type workLoopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	errorHandler   ErrorHandler
	starvationRate map[time.Duration]int
}

// Option configures a WorkLoop instance.
type Option interface {
	applyWorkLoop(*workLoopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyWorkLoopFunc func(*workLoopOptions) error
}

func (o *optionImpl) applyWorkLoop(opts *workLoopOptions) error {
	return o.applyWorkLoopFunc(opts)
}

// WithLogger sets the structured logger used by the WorkLoop.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *workLoopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithErrorHandler sets the handler for render failures. The default logs
// the failure at error level.
func WithErrorHandler(handler ErrorHandler) Option {
	return &optionImpl{func(opts *workLoopOptions) error {
		opts.errorHandler = handler
		return nil
	}}
}

// WithStarvationReportRates sets the rates at which expired lanes are
// reported, per lane per root, see DefaultStarvationReportRates. The rates
// must be valid for catrate.NewLimiter. An empty map reports every
// expiration.
func WithStarvationReportRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *workLoopOptions) error {
		if len(rates) != 0 {
			if _, err := newStarvationLimiter(rates); err != nil {
				return err
			}
		}
		opts.starvationRate = rates
		return nil
	}}
}

// resolveOptions applies Option instances to workLoopOptions.
func resolveOptions(opts []Option) (*workLoopOptions, error) {
	cfg := &workLoopOptions{
		starvationRate: DefaultStarvationReportRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWorkLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newStarvationLimiter converts the panic catrate.NewLimiter raises for
// invalid rates into an error. A nil limiter allows everything.
func newStarvationLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter, err = nil, fmt.Errorf("%w: %v", ErrInvalidReportRates, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

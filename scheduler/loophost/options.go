package loophost

import (
	"fmt"

	"github.com/joeycumines/go-scheduler/scheduler"
	"github.com/joeycumines/logiface"
)

// hostOptions holds configuration options for Host creation.
type hostOptions struct {
	logger    *logiface.Logger[logiface.Event]
	frameRate int
}

// Option configures a Host instance.
type Option interface {
	applyHost(*hostOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyHostFunc func(*hostOptions) error
}

func (o *optionImpl) applyHost(opts *hostOptions) error {
	return o.applyHostFunc(opts)
}

// WithLogger sets the structured logger used to report dropped requests.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *hostOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithFrameRate sets the initial frame rate, see Host.ForceFrameRate.
func WithFrameRate(fps int) Option {
	return &optionImpl{func(opts *hostOptions) error {
		if !validFrameRate(fps) {
			return fmt.Errorf("loophost: %w: %d", scheduler.ErrInvalidFrameRate, fps)
		}
		opts.frameRate = fps
		return nil
	}}
}

// resolveOptions applies Option instances to hostOptions.
func resolveOptions(opts []Option) (*hostOptions, error) {
	cfg := &hostOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyHost(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

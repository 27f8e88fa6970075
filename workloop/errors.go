package workloop

import (
	"errors"
)

var (
	// ErrNilScheduler is returned by New when no scheduler is provided.
	ErrNilScheduler = errors.New("workloop: nil scheduler")

	// ErrNilRenderer is returned by WorkLoop.NewRoot when no renderer is
	// provided.
	ErrNilRenderer = errors.New("workloop: nil renderer")

	// ErrInvalidReportRates is returned by New if the starvation report
	// rates are not accepted by the rate limiter.
	ErrInvalidReportRates = errors.New("workloop: invalid starvation report rates")

	// ErrNestedUpdateLimit is returned by WorkLoop.ScheduleUpdate when a root
	// keeps scheduling synchronous work from its own commits, which would
	// otherwise never terminate.
	ErrNestedUpdateLimit = errors.New("workloop: maximum nested update depth exceeded")

	// ErrWorkInProgress is returned by WorkLoop.FlushSync when called while
	// a root is rendering or committing.
	ErrWorkInProgress = errors.New("workloop: cannot flush while rendering or committing")
)

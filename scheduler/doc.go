// Package scheduler implements a cooperative, priority-aware task scheduler.
//
// Tasks are registered with ScheduleCallback at one of five priorities. Each
// priority maps to a timeout, and the scheduler runs ready tasks in order of
// expiration time (the start time plus the timeout), breaking ties in the
// order they were scheduled. Work is done in slices granted by a Host: once
// the host reports that the slice is exhausted, the scheduler stops picking
// up unexpired tasks and hands control back, asking to be called again.
//
// A long-running callback cooperates by polling ShouldYield, and returning a
// continuation Callback, which stays at the head of the queue and resumes
// where it left off. Expired tasks run regardless of the time slice, which is
// what keeps low priority work from starving.
//
// Hosts are provided by the mockhost package, which runs on virtual time and
// is intended for tests and simulations, and the loophost package, which
// runs on a github.com/joeycumines/go-eventloop Loop.
package scheduler

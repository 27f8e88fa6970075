// Package workloop drives renders of independently scheduled roots, using a
// lane.Root to decide what to work on and a scheduler.Scheduler to decide
// when.
//
// Updates are assigned a lane with WorkLoop.RequestUpdateLane, then
// recorded with WorkLoop.ScheduleUpdate, which ensures the root has a
// scheduler task at the priority of its most urgent pending lanes. That
// task asks the Renderer for bounded work, yielding back to the scheduler
// whenever ShouldYield reports the time slice is exhausted, and commits the
// result once the render completes. Lanes that wait too long are expired,
// and then rendered synchronously.
//
// A WorkLoop is not safe for concurrent use. It, its roots, and the
// scheduler must all be confined to the same goroutine, typically that of
// the scheduler's Host.
package workloop

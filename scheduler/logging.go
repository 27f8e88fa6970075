package scheduler

import (
	"github.com/joeycumines/logiface"
)

// logCritical reports a task callback that panicked. The panic is
// re-raised by the caller.
func (s *Scheduler) logCritical(task *Task, r any) {
	s.logger.Crit().
		Uint64(`task_id`, task.id).
		Str(`priority`, task.priority.String()).
		Any(`panic`, r).
		Log(`scheduler: task callback panicked`)
}

func (s *Scheduler) logTask(b *logiface.Builder[logiface.Event], task *Task, msg string) {
	b.
		Uint64(`task_id`, task.id).
		Str(`priority`, task.priority.String()).
		Int64(`start_time`, task.startTime).
		Int64(`expiration_time`, task.expirationTime).
		Log(msg)
}

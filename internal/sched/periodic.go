package sched

import (
	"errors"

	"pendant-go/errcode"
)

// Periodic wraps a body so the next release is armed at scheduled+period on
// every exit path, panics included. If that instant has already passed the
// miss is counted and the task resynchronises at now+period; after MaxMissed
// consecutive misses the executor halts with a deadline fault.
func Periodic(period Duration, body func(c *Context) error) Handler {
	missed := 0
	return func(c *Context, _ any) error {
		defer func() {
			e, t := c.e, c.task
			next := c.scheduled.Add(period)
			err := e.ScheduleAt(t.id, next, nil)
			if err == nil {
				missed = 0
				return
			}
			if !errors.Is(err, errcode.Elapsed) {
				if !errors.Is(err, ErrHalted) {
					e.log.Warn("periodic re-arm failed", "task", t.spec.Name, "err", err)
				}
				return
			}
			missed++
			t.misses.Add(1)
			if missed >= e.maxMissed {
				e.Halt(errcode.New(errcode.Deadline, t.spec.Name, "consecutive deadline misses"))
				return
			}
			if err := e.ScheduleAt(t.id, c.Now().Add(period), nil); err != nil {
				e.log.Warn("periodic resync failed", "task", t.spec.Name, "err", err)
			}
		}()
		return body(c)
	}
}

// Start arms the first release of a periodic task at now+offset.
func (e *Executor) Start(id TaskID, offset Duration) error {
	return e.ScheduleAt(id, e.clock.Now().Add(offset), nil)
}

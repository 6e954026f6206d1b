package sched

import "log/slog"

// Context is handed to a running task. It is only valid for the duration of
// the invocation and must not be retained.
type Context struct {
	e         *Executor
	task      *task
	prio      Priority
	scheduled Instant
}

func (c *Context) Task() TaskID        { return c.task.id }
func (c *Context) Name() string        { return c.task.spec.Name }
func (c *Context) Priority() Priority  { return c.prio }
func (c *Context) Now() Instant        { return c.e.clock.Now() }
func (c *Context) Hz() uint32          { return c.e.clock.Hz() }
func (c *Context) Executor() *Executor { return c.e }
func (c *Context) Logger() *slog.Logger {
	return c.e.log.With("task", c.task.spec.Name)
}

// Scheduled is the instant this invocation was armed for. For interrupt and
// pended work it is the enqueue instant.
func (c *Context) Scheduled() Instant { return c.scheduled }

func (c *Context) ScheduleAt(id TaskID, at Instant, msg any) error {
	return c.e.ScheduleAt(id, at, msg)
}

// Pend queues one invocation of id and runs it immediately if it outranks
// the caller.
func (c *Context) Pend(id TaskID, msg any) error {
	return c.e.Interrupt(id, msg)
}

// Checkpoint releases due timers and lets anything that outranks the caller
// run before it continues. Long low-priority bodies call it between steps.
func (c *Context) Checkpoint() {
	c.e.releaseDue()
	c.e.dispatch(0)
}

// Halt stops the executor after running the fault hooks.
func (c *Context) Halt(err error) { c.e.Halt(err) }

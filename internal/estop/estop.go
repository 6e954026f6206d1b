// Package estop is the safety task. It runs at the top priority on both
// edges of the estop line and commits the re-read level to the latch.
package estop

import (
	"log/slog"
	"sync/atomic"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
	"pendant-go/types"
)

const Name = "estop"

type Config struct {
	Pin      hw.Pin
	Priority sched.Priority
}

type Task struct {
	cfg   Config
	io    hw.IO
	latch *state.Latch
	exec  *sched.Executor
	id    sched.TaskID
	log   *slog.Logger

	edges  atomic.Uint32
	missed atomic.Uint32 // edges that found the queue full (coalesced)
}

// Register adds the estop task to e as the safety task. Call Arm after
// e.Seal to start taking interrupts.
func Register(e *sched.Executor, io hw.IO, latch *state.Latch, cfg Config, log *slog.Logger) (*Task, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &Task{cfg: cfg, io: io, latch: latch, exec: e, log: log.With("component", Name)}
	id, err := e.Register(sched.Spec{
		Name:     Name,
		Priority: cfg.Priority,
		Capacity: 2, // one running, one pending
		Safety:   true,
	}, t.handle)
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

func (t *Task) ID() sched.TaskID { return t.id }

// Arm enables the edge interrupt. The latch keeps its safe default until
// the first edge is handled.
func (t *Task) Arm() error {
	if err := t.io.EnableEdgeInterrupt(t.cfg.Pin, types.EdgeBoth, t.isr); err != nil {
		err = errcode.Wrap(errcode.Hardware, "estop arm", err)
		t.fail(err)
		return err
	}
	t.log.Info("estop armed", "pin", t.cfg.Pin)
	return nil
}

// isr runs in interrupt context. A full queue means an invocation is
// already pending; it will re-read the line, so the edge is not lost.
func (t *Task) isr(ev types.EstopEvent) {
	t.edges.Add(1)
	if err := t.exec.Interrupt(t.id, ev); err != nil {
		t.missed.Add(1)
	}
}

// handle commits the current level. The edge in the event is not trusted:
// several edges may have coalesced before this ran. The pending flag is
// cleared last so an edge during the handler raises a new interrupt.
func (t *Task) handle(c *sched.Context, _ any) error {
	asserted, err := t.io.ReadPin(t.cfg.Pin)
	if err != nil {
		t.fail(errcode.Wrap(errcode.Hardware, "estop read", err))
		return err
	}
	t.latch.Set(asserted)
	if err := t.io.ClearInterrupt(t.cfg.Pin); err != nil {
		t.fail(errcode.Wrap(errcode.Hardware, "estop clear", err))
		return err
	}
	return nil
}

// fail forces the safe state before anything else, then halts.
func (t *Task) fail(err error) {
	t.latch.ForceSafe(err)
	t.exec.Halt(err)
}

// Recover re-reads the line after a latched fault. A halted executor no
// longer dispatches estop edges, so the fault stays latched and ErrHalted
// is returned.
func (t *Task) Recover() error {
	if t.exec.Halted() {
		return sched.ErrHalted
	}
	return t.latch.Recover(func() (bool, error) { return t.io.ReadPin(t.cfg.Pin) })
}

// Edges and Coalesced are diagnostic counters.
func (t *Task) Edges() uint32     { return t.edges.Load() }
func (t *Task) Coalesced() uint32 { return t.missed.Load() }

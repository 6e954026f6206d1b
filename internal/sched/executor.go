package sched

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"pendant-go/errcode"
	"pendant-go/internal/util"
	"pendant-go/x/critical"
)

// Priority of a task. 0 is thread mode; tasks use 1..MaxPriority.
type Priority uint8

const MaxPriority Priority = 8

type TaskID uint16

// ErrHalted is returned by Run and by every scheduling call after Halt.
var ErrHalted error = errcode.Halted

// Handler runs one invocation. msg is whatever was queued with the release
// (nil for plain timer arms).
type Handler func(c *Context, msg any) error

// Spec declares a task to the registry.
type Spec struct {
	Name      string
	Priority  Priority
	Resources []string // shared resources the task locks
	Capacity  int      // outstanding invocations (armed + ready); 0 means 1
	Period    Duration // 0 for event-driven tasks
	Safety    bool     // the estop task: unique top priority, never blocked
}

// Stats are cumulative per-task counters.
type Stats struct {
	Invocations uint32
	Arms        uint32
	Misses      uint32
	Drops       uint32
	Errors      uint32
}

type task struct {
	id      TaskID
	spec    Spec
	handler Handler
	ctx     Context
	pending int // guarded by critical

	invocations atomic.Uint32
	arms        atomic.Uint32
	misses      atomic.Uint32
	drops       atomic.Uint32
	errors      atomic.Uint32
}

type Options struct {
	Logger    *slog.Logger
	MaxMissed int // consecutive periodic misses before halting; 0 means 3
}

// Executor is a single-core, priority-preemptive run-to-completion scheduler.
//
// sysPrio is the running priority of the core. It only changes inside a
// critical section. A context raising it dispatches work above the previous
// level in its own call stack, the same way a nested interrupt would.
type Executor struct {
	clock     Clock
	log       *slog.Logger
	maxMissed int

	// registry; mutated only before Seal
	tasks     []*task
	byName    map[string]*task
	resources []*resCore
	faults    []func(error)
	sealed    bool

	// guarded by critical
	sysPrio Priority
	ready   [MaxPriority + 1]ring
	timers  timerQueue

	wake     chan struct{}
	rearm    chan struct{}
	halted   atomic.Bool
	haltOnce sync.Once
	haltErr  atomic.Value
}

func New(clock Clock, opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxMissed <= 0 {
		opts.MaxMissed = 3
	}
	return &Executor{
		clock:     clock,
		log:       opts.Logger.With("component", "sched"),
		maxMissed: opts.MaxMissed,
		byName:    make(map[string]*task),
		wake:      make(chan struct{}, 1),
		rearm:     make(chan struct{}, 1),
	}
}

func (e *Executor) Clock() Clock { return e.clock }
func (e *Executor) Now() Instant { return e.clock.Now() }

// Register adds a task. Validation is deferred to Seal so every problem is
// reported at once.
func (e *Executor) Register(spec Spec, h Handler) (TaskID, error) {
	if e.sealed {
		return 0, errcode.New(errcode.Sealed, "register", spec.Name)
	}
	if h == nil {
		return 0, errcode.New(errcode.Error, "register", spec.Name+": nil handler")
	}
	if spec.Capacity <= 0 {
		spec.Capacity = 1
	}
	t := &task{id: TaskID(len(e.tasks)), spec: spec, handler: h}
	t.ctx = Context{e: e, task: t}
	e.tasks = append(e.tasks, t)
	if _, dup := e.byName[spec.Name]; !dup {
		e.byName[spec.Name] = t
	}
	return t.id, nil
}

// OnFault adds a hook run by Halt, in registration order. Register the
// safe-state hook first.
func (e *Executor) OnFault(fn func(error)) {
	if !e.sealed && fn != nil {
		e.faults = append(e.faults, fn)
	}
}

// Lookup returns the id of a named task.
func (e *Executor) Lookup(name string) (TaskID, bool) {
	t, ok := e.byName[name]
	if !ok {
		return 0, false
	}
	return t.id, true
}

func (e *Executor) TaskName(id TaskID) string {
	if t := e.get(id); t != nil {
		return t.spec.Name
	}
	return fmt.Sprintf("task#%d", id)
}

func (e *Executor) Stats(id TaskID) Stats {
	t := e.get(id)
	if t == nil {
		return Stats{}
	}
	return Stats{
		Invocations: t.invocations.Load(),
		Arms:        t.arms.Load(),
		Misses:      t.misses.Load(),
		Drops:       t.drops.Load(),
		Errors:      t.errors.Load(),
	}
}

func (e *Executor) get(id TaskID) *task {
	if int(id) >= len(e.tasks) {
		return nil
	}
	return e.tasks[id]
}

func (e *Executor) lookup(op string, id TaskID) (*task, error) {
	if !e.sealed {
		return nil, errcode.New(errcode.Unsealed, op, "")
	}
	if e.halted.Load() {
		return nil, ErrHalted
	}
	t := e.get(id)
	if t == nil {
		return nil, errcode.New(errcode.UnknownTask, op, fmt.Sprint(id))
	}
	return t, nil
}

// -----------------------------------------------------------------------------
// Arming and releasing
// -----------------------------------------------------------------------------

// ScheduleAt arms one future invocation of id at the given instant.
// An instant already in the past is Elapsed; arming beyond the task's
// capacity is Full. Neither changes any state.
func (e *Executor) ScheduleAt(id TaskID, at Instant, msg any) error {
	t, err := e.lookup("schedule", id)
	if err != nil {
		return err
	}
	s := critical.Enter()
	if at.Before(e.clock.Now()) {
		critical.Exit(s)
		return errcode.Elapsed
	}
	if t.pending >= t.spec.Capacity {
		critical.Exit(s)
		return errcode.Full
	}
	t.pending++
	e.timers.add(at, item{task: t, msg: msg, scheduled: at})
	critical.Exit(s)

	t.arms.Add(1)
	signal(e.rearm)
	return nil
}

// Interrupt is the entry point for hardware-bound tasks. It queues msg for
// exactly one invocation, then runs everything that outranks the interrupted
// context in the caller's context. Work that does not outrank it is left to
// the interrupted context. A full queue drops msg and counts it.
func (e *Executor) Interrupt(id TaskID, msg any) error {
	t, err := e.lookup("interrupt", id)
	if err != nil {
		return err
	}
	if err := e.enqueue(t, msg); err != nil {
		return err
	}
	e.dispatch(0)
	return nil
}

func (e *Executor) enqueue(t *task, msg any) error {
	s := critical.Enter()
	if t.pending >= t.spec.Capacity || !e.ready[t.spec.Priority].push(item{task: t, msg: msg, scheduled: e.clock.Now()}) {
		critical.Exit(s)
		t.drops.Add(1)
		return errcode.Full
	}
	t.pending++
	critical.Exit(s)
	signal(e.wake)
	return nil
}

// releaseDue moves due timers to their ready queues and returns the highest
// priority released (0 when nothing was due).
func (e *Executor) releaseDue() Priority {
	var top Priority
	s := critical.Enter()
	now := e.clock.Now()
	for {
		it, ok := e.timers.popDue(now)
		if !ok {
			break
		}
		p := it.task.spec.Priority
		// capacity was reserved at arm time so the push cannot fail
		e.ready[p].push(it)
		if p > top {
			top = p
		}
	}
	critical.Exit(s)
	if top > 0 {
		signal(e.wake)
	}
	return top
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

// dispatch runs ready invocations that outrank the running context, highest
// first, in the caller's call stack. Each one restores the level it
// preempted before the next is picked. limit 0 means until nothing outranks.
func (e *Executor) dispatch(limit int) int {
	n := 0
	for limit == 0 || n < limit {
		s := critical.Enter()
		base := e.sysPrio
		if e.halted.Load() {
			critical.Exit(s)
			return n
		}
		var it item
		level := Priority(0)
		for p := MaxPriority; p > base; p-- {
			if x, ok := e.ready[p].pop(); ok {
				it, level = x, p
				break
			}
		}
		if level == 0 {
			critical.Exit(s)
			return n
		}
		it.task.pending--
		e.sysPrio = level
		critical.Exit(s)

		e.invoke(it)
		e.setPrio(level, base)
		n++
	}
	return n
}

// setPrio moves sysPrio from -> to, waiting out any preempting context.
func (e *Executor) setPrio(from, to Priority) {
	s := critical.Enter()
	for e.sysPrio != from {
		critical.Exit(s)
		runtime.Gosched()
		s = critical.Enter()
	}
	e.sysPrio = to
	critical.Exit(s)
}

func (e *Executor) invoke(it item) {
	t := it.task
	c := &t.ctx
	c.prio = t.spec.Priority
	c.scheduled = it.scheduled
	t.invocations.Add(1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errcode.New(errcode.Error, t.spec.Name, fmt.Sprintf("panic: %v", r))
			}
		}()
		return t.handler(c, it.msg)
	}()
	if err != nil {
		t.errors.Add(1)
		if !e.halted.Load() {
			e.log.Warn("task failed", "task", t.spec.Name, "err", err)
		}
	}
}

// Step releases due timers and runs at most one ready invocation from thread
// mode (plus whatever preempts it). It reports whether anything ran.
func (e *Executor) Step() bool {
	if !e.sealed || e.halted.Load() {
		return false
	}
	e.releaseDue()
	return e.dispatch(1) > 0
}

// RunPending steps until nothing is ready.
func (e *Executor) RunPending() int {
	n := 0
	for e.Step() {
		n++
	}
	return n
}

// Run drives the executor from wall time until ctx ends or the executor
// halts. A monotonic goroutine releases timers and preempts running work;
// thread mode runs whatever is left.
func (e *Executor) Run(ctx context.Context) error {
	if !e.sealed {
		return errcode.New(errcode.Unsealed, "run", "")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.monotonic(ctx)

	for {
		if e.halted.Load() {
			return ErrHalted
		}
		e.dispatch(0)
		select {
		case <-ctx.Done():
			if e.halted.Load() {
				return ErrHalted
			}
			return ctx.Err()
		case <-e.wake:
		}
	}
}

// monotonic plays the timer interrupt: at each deadline it releases due work
// and preempts only when something is already running.
func (e *Executor) monotonic(ctx context.Context) {
	tm := time.NewTimer(time.Hour)
	defer tm.Stop()
	for {
		if e.halted.Load() {
			signal(e.wake)
			return
		}
		if top := e.releaseDue(); top > 0 {
			s := critical.Enter()
			busy := e.sysPrio > 0
			critical.Exit(s)
			if busy {
				e.dispatch(0)
			}
		}
		s := critical.Enter()
		due, ok := e.timers.next()
		critical.Exit(s)
		wait := time.Hour
		if ok {
			now := e.clock.Now()
			if !due.After(now) {
				continue
			}
			wait = ToTime(e.clock.Hz(), due.Since(now))
		}
		util.ResetTimer(tm, wait)
		select {
		case <-ctx.Done():
			return
		case <-e.rearm:
		case <-tm.C:
		}
	}
}

// -----------------------------------------------------------------------------
// Fault handling
// -----------------------------------------------------------------------------

// Halt runs the fault hooks once, in order, and stops all further dispatch.
func (e *Executor) Halt(err error) {
	e.haltOnce.Do(func() {
		if err == nil {
			err = errcode.Halted
		}
		e.haltErr.Store(haltCause{err})
		for _, fn := range e.faults {
			fn(err)
		}
		e.halted.Store(true)
		e.log.Error("executor halted", "err", err)
		signal(e.wake)
		signal(e.rearm)
	})
}

type haltCause struct{ err error }

func (e *Executor) Halted() bool { return e.halted.Load() }

// HaltErr returns the error passed to Halt, or nil.
func (e *Executor) HaltErr() error {
	if v, ok := e.haltErr.Load().(haltCause); ok {
		return v.err
	}
	return nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

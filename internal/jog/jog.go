// Package jog samples the handwheel at a fixed rate, keeps the jog
// position and reports steps to the host link.
package jog

import (
	"log/slog"
	"sync/atomic"

	"pendant-go/errcode"
	"pendant-go/internal/encoder"
	"pendant-go/internal/hostlink"
	"pendant-go/internal/hw"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
	"pendant-go/types"
	"pendant-go/x/shmring"
)

const Name = "jog"

type Config struct {
	Priority sched.Priority
	Period   sched.Duration
}

type Task struct {
	cfg   Config
	src   hw.CounterReader
	store *state.Store
	link  *shmring.Ring
	log   *slog.Logger
	id    sched.TaskID

	stopSent bool
	buf      [32]byte

	steps    atomic.Uint32
	stops    atomic.Uint32
	overflow atomic.Uint32 // records the ring had no room for
}

// Register adds the sampler. link may be nil when no host is attached.
func Register(e *sched.Executor, src hw.CounterReader, store *state.Store, link *shmring.Ring, cfg Config, log *slog.Logger) (*Task, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &Task{cfg: cfg, src: src, store: store, link: link, log: log.With("component", Name)}
	id, err := e.Register(sched.Spec{
		Name:      Name,
		Priority:  cfg.Priority,
		Period:    cfg.Period,
		Resources: []string{state.ResJog, state.ResMultiplier, state.ResAxis},
	}, sched.Periodic(cfg.Period, t.sample))
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

func (t *Task) ID() sched.TaskID { return t.id }

func (t *Task) sample(c *sched.Context) error {
	// STOP goes out once per entry into estop, even if the wheel is faulty.
	if t.store.Estop.Estopped() {
		if !t.stopSent && t.emit(hostlink.AppendStop(t.buf[:0])) {
			t.stopSent = true
			t.stops.Add(1)
		}
	} else {
		t.stopSent = false
	}

	var (
		s    encoder.Sample
		rerr error
	)
	err := sched.Lock(c, t.store.Jog, func(j *state.Jog) {
		s, rerr = j.Tracker.Sample(t.src, c.Now())
		if rerr != nil {
			j.Failures++
			return
		}
		j.Last = s
		j.Position += int64(s.Delta)
		j.Samples++
	})
	if err != nil {
		return err
	}
	if rerr != nil {
		return errcode.Wrap(errcode.TransientBus, "jog sample", rerr)
	}
	if s.Delta == 0 || t.store.Estop.Estopped() {
		return nil
	}

	var (
		m types.Multiplier
		a types.Axis
	)
	if err := sched.Lock(c, t.store.Multiplier, func(v *types.Multiplier) { m = *v }); err != nil {
		return err
	}
	if err := sched.Lock(c, t.store.Axis, func(v *types.Axis) { a = *v }); err != nil {
		return err
	}
	if !m.Valid() || !a.Valid() {
		return nil
	}
	if t.emit(hostlink.AppendStep(t.buf[:0], a, m, s.Delta)) {
		t.steps.Add(1)
	}
	return nil
}

// emit writes one whole record or drops it.
func (t *Task) emit(rec []byte) bool {
	if t.link == nil {
		return true
	}
	if !t.link.WriteRecord(rec) {
		if t.overflow.Add(1) == 1 {
			t.log.Warn("host link ring full, dropping records")
		}
		return false
	}
	return true
}

func (t *Task) Steps() uint32    { return t.steps.Load() }
func (t *Task) Stops() uint32    { return t.stops.Load() }
func (t *Task) Overflow() uint32 { return t.overflow.Load() }

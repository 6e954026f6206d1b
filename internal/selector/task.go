package selector

import (
	"log/slog"
	"sync/atomic"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
	"pendant-go/types"
)

const Name = "selector"

type Config struct {
	Priority    sched.Priority
	Period      sched.Duration
	StablePolls int

	// Pins in priority order: the first asserted one wins.
	Multiplier []Choice[types.Multiplier]
	Axis       []Choice[types.Axis]
}

// Task polls both selector switches and commits debounced values.
type Task struct {
	cfg   Config
	src   hw.PinReader
	store *state.Store
	log   *slog.Logger
	id    sched.TaskID

	mul  *Debouncer[types.Multiplier]
	axis *Debouncer[types.Axis]

	mulAmbiguous, axisAmbiguous bool

	ambiguous atomic.Uint32
	skipped   atomic.Uint32
}

func Register(e *sched.Executor, src hw.PinReader, store *state.Store, cfg Config, log *slog.Logger) (*Task, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &Task{
		cfg:   cfg,
		src:   src,
		store: store,
		log:   log.With("component", Name),
		mul:   NewDebouncer[types.Multiplier](cfg.StablePolls),
		axis:  NewDebouncer[types.Axis](cfg.StablePolls),
	}
	id, err := e.Register(sched.Spec{
		Name:      Name,
		Priority:  cfg.Priority,
		Period:    cfg.Period,
		Resources: []string{state.ResMultiplier, state.ResAxis},
	}, sched.Periodic(cfg.Period, t.poll))
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

func (t *Task) ID() sched.TaskID { return t.id }

// poll handles each switch on its own: a read failure skips that switch
// for this poll and leaves its debounce count alone.
func (t *Task) poll(c *sched.Context) error {
	var failed error
	if r, err := Resolve(t.src, t.cfg.Multiplier); err != nil {
		t.skipped.Add(1)
		failed = err
	} else {
		t.flag("multiplier", r.Ambiguous, &t.mulAmbiguous, r.Value.String())
		if v, ok := t.mul.Observe(r.Value); ok {
			if err := t.store.SetMultiplier(c, v); err != nil {
				return err
			}
		}
	}
	if r, err := Resolve(t.src, t.cfg.Axis); err != nil {
		t.skipped.Add(1)
		failed = err
	} else {
		t.flag("axis", r.Ambiguous, &t.axisAmbiguous, r.Value.String())
		if v, ok := t.axis.Observe(r.Value); ok {
			if err := t.store.SetAxis(c, v); err != nil {
				return err
			}
		}
	}
	if failed != nil {
		return errcode.Wrap(errcode.TransientBus, "selector read", failed)
	}
	return nil
}

// flag counts ambiguous readings and logs when a switch enters or leaves
// that condition.
func (t *Task) flag(which string, ambiguous bool, was *bool, won string) {
	if ambiguous {
		t.ambiguous.Add(1)
	}
	if ambiguous == *was {
		return
	}
	*was = ambiguous
	if ambiguous {
		t.log.Warn("several positions asserted", "selector", which, "using", won, "code", errcode.AmbiguousSelection)
	} else {
		t.log.Info("selection unambiguous again", "selector", which)
	}
}

func (t *Task) Ambiguous() uint32 { return t.ambiguous.Load() }
func (t *Task) Skipped() uint32   { return t.skipped.Load() }

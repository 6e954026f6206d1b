// Package state owns the pendant state. Selector and jog fields are
// ceiling-protected resources; the estop flag is a lock-free latch.
package state

import (
	"pendant-go/internal/encoder"
	"pendant-go/internal/sched"
	"pendant-go/types"
)

// Resource names, as declared in task specs.
const (
	ResMultiplier = "multiplier"
	ResAxis       = "axis"
	ResJog        = "jog"
)

// Jog is the encoder tracker plus what the sampler derived from it.
type Jog struct {
	Tracker  encoder.Tracker
	Last     encoder.Sample
	Position int64 // accumulated counts since boot
	Samples  uint32
	Failures uint32
}

type Store struct {
	Multiplier *sched.Resource[types.Multiplier]
	Axis       *sched.Resource[types.Axis]
	Jog        *sched.Resource[Jog]
	Estop      *Latch
}

// New registers the store's resources with e. Call before e.Seal.
// Initial state: estopped, nothing selected.
func New(e *sched.Executor, tracker encoder.Tracker) *Store {
	return &Store{
		Multiplier: sched.NewResource(e, ResMultiplier, types.MultiplierNone),
		Axis:       sched.NewResource(e, ResAxis, types.AxisNone),
		Jog:        sched.NewResource(e, ResJog, Jog{Tracker: tracker}),
		Estop:      NewLatch(),
	}
}

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Estopped   bool
	Faulted    bool
	Multiplier types.Multiplier
	Axis       types.Axis
	Jog        encoder.Sample
	Position   int64
}

// Snapshot copies each field under its own ceiling; no two are held at
// once. The caller must declare all three resources.
func (s *Store) Snapshot(c *sched.Context) (Snapshot, error) {
	snap := Snapshot{
		Estopped: s.Estop.Estopped(),
		Faulted:  s.Estop.Faulted(),
	}
	if err := sched.Lock(c, s.Multiplier, func(m *types.Multiplier) { snap.Multiplier = *m }); err != nil {
		return Snapshot{}, err
	}
	if err := sched.Lock(c, s.Axis, func(a *types.Axis) { snap.Axis = *a }); err != nil {
		return Snapshot{}, err
	}
	if err := sched.Lock(c, s.Jog, func(j *Jog) { snap.Jog, snap.Position = j.Last, j.Position }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SetMultiplier and SetAxis commit a debounced selection.
func (s *Store) SetMultiplier(c *sched.Context, m types.Multiplier) error {
	return sched.Lock(c, s.Multiplier, func(v *types.Multiplier) { *v = m })
}

func (s *Store) SetAxis(c *sched.Context, a types.Axis) error {
	return sched.Lock(c, s.Axis, func(v *types.Axis) { *v = a })
}

// Package encoder turns a wrapping quadrature counter into signed deltas and
// a velocity.
package encoder

import (
	"pendant-go/internal/hw"
	"pendant-go/internal/sched"
	"pendant-go/types"
	"pendant-go/x/mathx"
)

// Sample is one tracker reading. Delta is in counts within [-N/2, N/2).
type Sample struct {
	Count     uint16
	Direction types.Direction
	Delta     int32
	At        sched.Instant

	// Velocity in counts per second; only meaningful when HasVelocity.
	Velocity    float32
	HasVelocity bool
}

// Tracker keeps the previous reading of one counter. The zero value is not
// usable; construct with New.
type Tracker struct {
	id      hw.Counter
	modulus uint32
	hz      uint32

	primed bool
	prev   uint16
	prevAt sched.Instant
	last   Sample
}

// New returns a tracker for counter id wrapping at modulus counts (the
// encoder PPR; 0 means the full 16-bit range), with instants at hz.
func New(id hw.Counter, modulus uint16, hz uint32) Tracker {
	m := uint32(modulus)
	if m == 0 {
		m = 1 << 16
	}
	return Tracker{id: id, modulus: m, hz: hz}
}

func (t *Tracker) Modulus() uint32 { return t.modulus }
func (t *Tracker) Last() Sample    { return t.last }

// Sample reads the counter and folds it into the tracker. A read failure is
// returned and leaves the tracker unchanged.
func (t *Tracker) Sample(src hw.CounterReader, now sched.Instant) (Sample, error) {
	count, dir, err := src.ReadCounter(t.id)
	if err != nil {
		return t.last, err
	}
	return t.Update(count, dir, now), nil
}

// Update folds an already read counter value into the tracker. The first
// update only primes it.
func (t *Tracker) Update(count uint16, dir types.Direction, now sched.Instant) Sample {
	s := Sample{Count: count, Direction: dir, At: now}
	if t.primed {
		raw := mathx.ModDelta(uint32(t.prev), uint32(count), t.modulus)
		s.Delta = int32(mathx.Centered(raw, t.modulus))
		if elapsed := now.Since(t.prevAt); elapsed > 0 && t.hz > 0 {
			s.Velocity = float32(float64(s.Delta) * float64(t.hz) / float64(elapsed))
			s.HasVelocity = true
		}
	}
	t.primed = true
	t.prev, t.prevAt, t.last = count, now, s
	return s
}

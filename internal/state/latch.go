package state

import (
	"sync"
	"sync/atomic"
)

// Latch holds the estop flag. It is a single word written only by the
// highest-priority task and read lock-free by everyone else, so reading it
// never raises a priority and writing it never waits.
//
// A fault forced through ForceSafe overrides the line until Recover.
type Latch struct {
	estopped atomic.Bool
	faulted  atomic.Bool

	mu     sync.Mutex
	reason error
}

// NewLatch starts in the safe state.
func NewLatch() *Latch {
	l := &Latch{}
	l.estopped.Store(true)
	return l
}

// Estopped is true while the line is asserted or a fault is latched.
func (l *Latch) Estopped() bool { return l.faulted.Load() || l.estopped.Load() }

// Line is the last committed line level, ignoring any latched fault.
func (l *Latch) Line() bool { return l.estopped.Load() }

func (l *Latch) Faulted() bool { return l.faulted.Load() }

// Set commits the asserted level read from the estop line.
func (l *Latch) Set(asserted bool) { l.estopped.Store(asserted) }

// ForceSafe latches the safe state. The first reason is kept.
func (l *Latch) ForceSafe(reason error) {
	l.estopped.Store(true)
	if l.faulted.Swap(true) {
		return
	}
	l.mu.Lock()
	l.reason = reason
	l.mu.Unlock()
}

func (l *Latch) Reason() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Recover clears a latched fault by re-reading the line. If the read fails
// the fault stays latched.
func (l *Latch) Recover(read func() (bool, error)) error {
	asserted, err := read()
	if err != nil {
		l.ForceSafe(err)
		return err
	}
	l.estopped.Store(asserted)
	l.mu.Lock()
	l.reason = nil
	l.mu.Unlock()
	l.faulted.Store(false)
	return nil
}

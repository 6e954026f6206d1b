// Package hwsim is an in-memory board used by tests and the host simulator.
// Edge interrupts fire synchronously in the goroutine that changes the line,
// which stands in for interrupt context.
package hwsim

import (
	"sync"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
	"pendant-go/types"
)

type line struct {
	asserted  bool
	edge      types.Edge
	isr       hw.EdgeHandler
	pending   bool
	seq       uint32
	coalesced uint32
	readErr   error
	clearErr  error
}

type counter struct {
	count   uint16
	dir     types.Direction
	modulus uint32
	err     error
}

// Board implements hw.IO.
type Board struct {
	mu       sync.Mutex
	lines    map[hw.Pin]*line
	counters map[hw.Counter]*counter
}

var _ hw.IO = (*Board)(nil)

func New() *Board {
	return &Board{
		lines:    make(map[hw.Pin]*line),
		counters: make(map[hw.Counter]*counter),
	}
}

func (b *Board) line(p hw.Pin) *line {
	l, ok := b.lines[p]
	if !ok {
		l = &line{}
		b.lines[p] = l
	}
	return l
}

func (b *Board) counter(c hw.Counter) *counter {
	k, ok := b.counters[c]
	if !ok {
		k = &counter{modulus: 1 << 16}
		b.counters[c] = k
	}
	return k
}

// ---- hw.IO ----

func (b *Board) ReadPin(p hw.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.line(p)
	if l.readErr != nil {
		return false, l.readErr
	}
	return l.asserted, nil
}

func (b *Board) ReadCounter(c hw.Counter) (uint16, types.Direction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := b.counter(c)
	if k.err != nil {
		return 0, 0, k.err
	}
	return k.count, k.dir, nil
}

func (b *Board) EnableEdgeInterrupt(p hw.Pin, edge types.Edge, isr hw.EdgeHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.line(p)
	if l.isr != nil {
		return errcode.New(errcode.PinInUse, "enable_irq", "")
	}
	l.edge, l.isr = edge, isr
	return nil
}

func (b *Board) ClearInterrupt(p hw.Pin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.line(p)
	if l.clearErr != nil {
		return l.clearErr
	}
	l.pending = false
	return nil
}

// ---- stimulus ----

// SetPin drives the logical level of a line. A matching edge sets the pending
// flag and, if it was clear, runs the handler before SetPin returns. Edges
// that arrive while the flag is still set coalesce into it.
func (b *Board) SetPin(p hw.Pin, asserted bool) {
	b.mu.Lock()
	l := b.line(p)
	old := l.asserted
	l.asserted = asserted
	seen := edgeFrom(old, asserted)
	if l.isr == nil || !wanted(l.edge, seen) {
		b.mu.Unlock()
		return
	}
	if l.pending {
		l.coalesced++
		b.mu.Unlock()
		return
	}
	l.pending = true
	l.seq++
	ev := types.EstopEvent{Edge: seen, Seq: l.seq}
	isr := l.isr
	b.mu.Unlock()
	isr(ev)
}

func (b *Board) Toggle(p hw.Pin) {
	b.mu.Lock()
	v := b.line(p).asserted
	b.mu.Unlock()
	b.SetPin(p, !v)
}

// SetModulus sets the wrap point of a counter (its PPR).
func (b *Board) SetModulus(c hw.Counter, n uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := uint32(n)
	if m == 0 {
		m = 1 << 16
	}
	b.counter(c).modulus = m
}

func (b *Board) SetCounter(c hw.Counter, count uint16, dir types.Direction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := b.counter(c)
	k.count, k.dir = count, dir
}

// Turn advances a counter by steps detents, wrapping at its modulus.
func (b *Board) Turn(c hw.Counter, steps int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := b.counter(c)
	m := int64(k.modulus)
	v := (int64(k.count) + int64(steps)%m + m) % m
	k.count = uint16(v)
	if steps < 0 {
		k.dir = types.DirDown
	} else if steps > 0 {
		k.dir = types.DirUp
	}
}

// ---- fault injection ----

func (b *Board) FailRead(p hw.Pin, err error) {
	b.mu.Lock()
	b.line(p).readErr = err
	b.mu.Unlock()
}

func (b *Board) FailClear(p hw.Pin, err error) {
	b.mu.Lock()
	b.line(p).clearErr = err
	b.mu.Unlock()
}

func (b *Board) FailCounter(c hw.Counter, err error) {
	b.mu.Lock()
	b.counter(c).err = err
	b.mu.Unlock()
}

// ---- inspection ----

func (b *Board) Pending(p hw.Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line(p).pending
}

// Coalesced counts edges absorbed by an already pending flag.
func (b *Board) Coalesced(p hw.Pin) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line(p).coalesced
}

func edgeFrom(old, new bool) types.Edge {
	switch {
	case !old && new:
		return types.EdgeRising
	case old && !new:
		return types.EdgeFalling
	default:
		return types.EdgeNone
	}
}

func wanted(cfg, seen types.Edge) bool {
	switch cfg {
	case types.EdgeBoth:
		return seen == types.EdgeRising || seen == types.EdgeFalling
	default:
		return seen != types.EdgeNone && cfg == seen
	}
}

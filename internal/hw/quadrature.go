package hw

import (
	"sync/atomic"

	"pendant-go/types"
)

// Quadrature decodes two-phase A/B levels into a wrapping counter, the way
// a QEI peripheral does it in hardware. Update is safe to call from one
// interrupt source while Read runs elsewhere.
type Quadrature struct {
	modulus uint32
	state   atomic.Uint32 // count<<8 | dir<<2 | ab
}

// quadrature transition table indexed by prev<<2|next: +1, -1 or 0.
var qdTable = [16]int8{
	0, -1, +1, 0,
	+1, 0, 0, -1,
	-1, 0, 0, +1,
	0, +1, -1, 0,
}

// NewQuadrature returns a decoder wrapping at modulus (0 means 1<<16).
func NewQuadrature(modulus uint16) *Quadrature {
	m := uint32(modulus)
	if m == 0 {
		m = 1 << 16
	}
	return &Quadrature{modulus: m}
}

// Update feeds the current A and B levels.
func (q *Quadrature) Update(a, b bool) {
	for {
		old := q.state.Load()
		prev := old & 3
		next := uint32(0)
		if a {
			next |= 2
		}
		if b {
			next |= 1
		}
		count := old >> 8
		dir := (old >> 2) & 1
		switch qdTable[prev<<2|next] {
		case +1:
			count = (count + 1) % q.modulus
			dir = uint32(types.DirUp)
		case -1:
			count = (count + q.modulus - 1) % q.modulus
			dir = uint32(types.DirDown)
		}
		if q.state.CompareAndSwap(old, count<<8|dir<<2|next) {
			return
		}
	}
}

// Read returns the counter and the direction of the last step.
func (q *Quadrature) Read() (uint16, types.Direction) {
	s := q.state.Load()
	return uint16(s >> 8), types.Direction((s >> 2) & 1)
}

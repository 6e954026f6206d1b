// Package hw is the register-level contract between the pendant tasks and
// the board. Every call is an immediate read or write; none block.
package hw

import "pendant-go/types"

// Pin and Counter identify lines and counters the way the board config
// numbers them (GPIO number, line offset or QEI unit).
type Pin int
type Counter int

// EdgeHandler is invoked in interrupt context, once per delivered edge.
type EdgeHandler func(types.EstopEvent)

type PinReader interface {
	// ReadPin reports whether the line is asserted; polarity is applied by
	// the backend.
	ReadPin(p Pin) (bool, error)
}

type CounterReader interface {
	ReadCounter(c Counter) (uint16, types.Direction, error)
}

type IO interface {
	PinReader
	CounterReader
	EnableEdgeInterrupt(p Pin, edge types.Edge, isr EdgeHandler) error
	// ClearInterrupt acknowledges the pending flag for p.
	ClearInterrupt(p Pin) error
}

// Package selector resolves banks of mutually exclusive switch inputs into a
// single value and debounces the result across polls.
package selector

import (
	"pendant-go/internal/hw"
)

// Choice binds one input line to the value it selects.
type Choice[T comparable] struct {
	Pin   hw.Pin
	Value T
}

// Reading is a resolved poll. The zero Value means nothing is selected.
type Reading[T comparable] struct {
	Value     T
	Ambiguous bool // more than one line asserted; the earliest won
}

// Resolve scans choices in order and returns the first asserted one. Later
// asserted lines only mark the reading ambiguous. A read failure aborts the
// scan.
func Resolve[T comparable](src hw.PinReader, choices []Choice[T]) (Reading[T], error) {
	var r Reading[T]
	found := false
	for _, c := range choices {
		on, err := src.ReadPin(c.Pin)
		if err != nil {
			return Reading[T]{}, err
		}
		if !on {
			continue
		}
		if found {
			r.Ambiguous = true
			continue
		}
		r.Value, found = c.Value, true
	}
	return r, nil
}

// Debouncer commits a value once the same reading has been seen on
// Required consecutive polls.
type Debouncer[T comparable] struct {
	required  int
	candidate T
	count     int
	committed T
}

// NewDebouncer starts with nothing committed. stablePolls < 1 is treated as 1.
func NewDebouncer[T comparable](stablePolls int) *Debouncer[T] {
	if stablePolls < 1 {
		stablePolls = 1
	}
	return &Debouncer[T]{required: stablePolls}
}

// Observe feeds one raw reading. It returns the value to commit and true
// exactly on the poll where the reading becomes stable.
func (d *Debouncer[T]) Observe(raw T) (T, bool) {
	if d.count == 0 || raw != d.candidate {
		d.candidate, d.count = raw, 1
	} else if d.count < d.required {
		d.count++
	} else {
		return d.committed, false
	}
	if d.count == d.required {
		d.committed = raw
		return raw, true
	}
	return d.committed, false
}

func (d *Debouncer[T]) Committed() T { return d.committed }

// Pending reports the candidate value and how many polls it has been stable.
func (d *Debouncer[T]) Pending() (T, int) { return d.candidate, d.count }

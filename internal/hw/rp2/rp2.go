//go:build rp2040 || rp2350

// Package rp2 backs hw.IO with the RP2040/RP2350 GPIO block. The quadrature
// counter is decoded in the pin-change interrupt.
package rp2

import (
	"machine"
	"sync/atomic"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
	"pendant-go/types"
)

type Input struct {
	Pin       hw.Pin
	ActiveLow bool
}

type Encoder struct {
	ID      hw.Counter
	A, B    hw.Pin
	Modulus uint16
}

type input struct {
	p         machine.Pin
	activeLow bool
	seq       atomic.Uint32
}

type Board struct {
	inputs   map[hw.Pin]*input
	encoders map[hw.Counter]*hw.Quadrature
}

var _ hw.IO = (*Board)(nil)

// New configures inputs with pull-ups and starts encoder decoding.
// The maps are filled once here and only read afterwards.
func New(inputs []Input, encoders []Encoder) (*Board, error) {
	b := &Board{
		inputs:   make(map[hw.Pin]*input, len(inputs)),
		encoders: make(map[hw.Counter]*hw.Quadrature, len(encoders)),
	}
	for _, in := range inputs {
		p := machine.Pin(in.Pin)
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		b.inputs[in.Pin] = &input{p: p, activeLow: in.ActiveLow}
	}
	for _, enc := range encoders {
		q := hw.NewQuadrature(enc.Modulus)
		a, bb := machine.Pin(enc.A), machine.Pin(enc.B)
		a.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		bb.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		update := func(machine.Pin) { q.Update(a.Get(), bb.Get()) }
		if err := a.SetInterrupt(machine.PinToggle, update); err != nil {
			return nil, errcode.Wrap(errcode.Hardware, "encoder", err)
		}
		if err := bb.SetInterrupt(machine.PinToggle, update); err != nil {
			return nil, errcode.Wrap(errcode.Hardware, "encoder", err)
		}
		q.Update(a.Get(), bb.Get())
		b.encoders[enc.ID] = q
	}
	return b, nil
}

func (b *Board) ReadPin(p hw.Pin) (bool, error) {
	in := b.inputs[p]
	if in == nil {
		return false, errcode.New(errcode.UnknownPin, "read_pin", "")
	}
	return in.p.Get() != in.activeLow, nil
}

func (b *Board) ReadCounter(c hw.Counter) (uint16, types.Direction, error) {
	q := b.encoders[c]
	if q == nil {
		return 0, 0, errcode.New(errcode.UnknownPin, "read_counter", "")
	}
	n, d := q.Read()
	return n, d, nil
}

func (b *Board) EnableEdgeInterrupt(p hw.Pin, edge types.Edge, isr hw.EdgeHandler) error {
	in := b.inputs[p]
	if in == nil {
		return errcode.New(errcode.UnknownPin, "enable_irq", "")
	}
	var change machine.PinChange
	switch edge {
	case types.EdgeRising:
		change = machine.PinRising
	case types.EdgeFalling:
		change = machine.PinFalling
	default:
		change = machine.PinToggle
	}
	err := in.p.SetInterrupt(change, func(machine.Pin) {
		// the handler re-reads the level; the edge is informational
		e := types.EdgeFalling
		if in.p.Get() != in.activeLow {
			e = types.EdgeRising
		}
		isr(types.EstopEvent{Edge: e, Seq: in.seq.Add(1)})
	})
	if err != nil {
		return errcode.Wrap(errcode.Hardware, "enable_irq", err)
	}
	return nil
}

// ClearInterrupt is a register-level no-op: the machine package acknowledges
// the edge before the handler runs.
func (b *Board) ClearInterrupt(p hw.Pin) error {
	if b.inputs[p] == nil {
		return errcode.New(errcode.UnknownPin, "clear_irq", "")
	}
	return nil
}

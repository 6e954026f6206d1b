package display

import (
	"pendant-go/internal/state"
	"pendant-go/types"
	"pendant-go/x/conv"
)

// Frame is the immutable render model for one refresh.
type Frame struct {
	Seq         uint32
	Estopped    bool
	Faulted     bool
	Multiplier  types.Multiplier
	Axis        types.Axis
	Position    int64
	Delta       int32
	Velocity    float32
	HasVelocity bool
	Direction   types.Direction
}

func FrameFrom(s state.Snapshot, seq uint32) Frame {
	return Frame{
		Seq:         seq,
		Estopped:    s.Estopped,
		Faulted:     s.Faulted,
		Multiplier:  s.Multiplier,
		Axis:        s.Axis,
		Position:    s.Position,
		Delta:       s.Jog.Delta,
		Velocity:    s.Jog.Velocity,
		HasVelocity: s.Jog.HasVelocity,
		Direction:   s.Jog.Direction,
	}
}

// Moving reports whether the last sample saw the wheel turn.
func (f Frame) Moving() bool { return f.Delta != 0 }

// Lines is the text content of the four panel rows, top to bottom.
func (f Frame) Lines() [4]string {
	var l [4]string
	l[0] = "Mul: " + f.Multiplier.String()
	l[1] = "Axis: " + f.Axis.String()
	switch {
	case f.Faulted:
		l[2] = "FAULT"
	case f.Estopped:
		l[2] = "ESTOP"
	default:
		l[2] = string(conv.AppendInt([]byte("Pos: "), f.Position))
	}
	if f.HasVelocity {
		b := conv.AppendFixed([]byte("Vel: "), float64(f.Velocity), 1)
		l[3] = string(append(b, "/s"...))
	} else {
		l[3] = "Vel: --"
	}
	return l
}

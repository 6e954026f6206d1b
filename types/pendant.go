package types

// ---- Selector values ----

// Multiplier is the jog step multiplier. The zero value means no selection
// (switch in the "Off" position or the pendant is disconnected).
type Multiplier uint8

const (
	MultiplierNone Multiplier = 0
	MultiplierX1   Multiplier = 1
	MultiplierX10  Multiplier = 10
	MultiplierX100 Multiplier = 100
)

// Weight is the ordinal weight (1/10/100), 0 for none.
func (m Multiplier) Weight() int { return int(m) }

// Valid reports whether m is one of the closed variants.
func (m Multiplier) Valid() bool {
	switch m {
	case MultiplierX1, MultiplierX10, MultiplierX100:
		return true
	}
	return false
}

func (m Multiplier) String() string {
	switch m {
	case MultiplierX1:
		return "X1"
	case MultiplierX10:
		return "X10"
	case MultiplierX100:
		return "X100"
	default:
		return "Off"
	}
}

// Axis is the selected jog axis. The zero value means no selection.
type Axis uint8

const (
	AxisNone Axis = iota
	AxisX
	AxisY
	AxisZ
	AxisA
)

func (a Axis) Valid() bool { return a >= AxisX && a <= AxisA }

// Index is the 1-based axis number used on the host link (X=1 .. A=4).
func (a Axis) Index() int { return int(a) }

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	case AxisA:
		return "A"
	default:
		return "Off"
	}
}

// ---- Encoder ----

// Direction as reported by the quadrature counter hardware.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
)

func (d Direction) String() string {
	if d == DirDown {
		return "down"
	}
	return "up"
}

// ---- Estop ----

// Edge is the kind of transition seen on an interrupt line.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// EstopEvent is the once-consumed notification for a single estop interrupt.
// The handler never trusts Edge for the resulting state; it re-reads the line.
type EstopEvent struct {
	Edge Edge
	Seq  uint32 // per-line interrupt sequence number
}

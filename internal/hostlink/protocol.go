package hostlink

import (
	"bytes"

	"pendant-go/errcode"
	"pendant-go/types"
	"pendant-go/x/conv"
)

// Line is one decoded host-link record.
type Line struct {
	Stop  bool
	Axis  types.Axis
	Mult  types.Multiplier
	Steps int32
}

var (
	stepPrefix = []byte("STEP:")
	stopLine   = []byte("STOP")
)

// AppendStep appends "STEP:<axis>,<mult>,<steps>\n".
func AppendStep(dst []byte, a types.Axis, m types.Multiplier, steps int32) []byte {
	dst = append(dst, stepPrefix...)
	dst = conv.AppendInt(dst, int64(a.Index()))
	dst = append(dst, ',')
	dst = conv.AppendInt(dst, int64(m.Weight()))
	dst = append(dst, ',')
	dst = conv.AppendInt(dst, int64(steps))
	return append(dst, '\n')
}

// AppendStop appends "STOP\n".
func AppendStop(dst []byte) []byte {
	return append(append(dst, stopLine...), '\n')
}

// ParseLine decodes one record, with or without its newline.
func ParseLine(b []byte) (Line, error) {
	b = bytes.TrimRight(b, "\r\n")
	if bytes.Equal(b, stopLine) {
		return Line{Stop: true}, nil
	}
	if !bytes.HasPrefix(b, stepPrefix) {
		return Line{}, errcode.New(errcode.Error, "hostlink parse", "unknown record")
	}
	fields := bytes.Split(b[len(stepPrefix):], []byte{','})
	if len(fields) != 3 {
		return Line{}, errcode.New(errcode.Error, "hostlink parse", "want 3 fields")
	}
	var v [3]int64
	for i, f := range fields {
		n, ok := parseInt(f)
		if !ok {
			return Line{}, errcode.New(errcode.Error, "hostlink parse", "bad number")
		}
		v[i] = n
	}
	l := Line{Axis: types.Axis(v[0]), Mult: types.Multiplier(v[1]), Steps: int32(v[2])}
	if !l.Axis.Valid() || !l.Mult.Valid() {
		return Line{}, errcode.New(errcode.Error, "hostlink parse", "axis or multiplier out of range")
	}
	return l, nil
}

func parseInt(b []byte) (int64, bool) {
	neg := len(b) > 0 && b[0] == '-'
	if neg {
		b = b[1:]
	}
	if len(b) == 0 || len(b) > 10 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

package display

import "sync"

// Op is one recorded driver call.
type Op struct {
	Kind  string // "clear", "text", "shape"
	At    Point
	Text  string
	Shape Shape
	Style Style
}

// Recorder is a Driver that keeps flushed frames in memory.
type Recorder struct {
	mu      sync.Mutex
	pending []Op
	frames  [][]Op
	fail    []error

	// OnFlush, if set, runs at the start of every Flush, standing in for
	// the time the bus transaction takes.
	OnFlush func()
}

var _ Driver = (*Recorder)(nil)

func (r *Recorder) Clear() {
	r.mu.Lock()
	r.pending = append(r.pending[:0], Op{Kind: "clear"})
	r.mu.Unlock()
}

func (r *Recorder) DrawText(at Point, text string, st Style) {
	r.mu.Lock()
	r.pending = append(r.pending, Op{Kind: "text", At: at, Text: text, Style: st})
	r.mu.Unlock()
}

func (r *Recorder) DrawShape(s Shape, st Style) {
	r.mu.Lock()
	r.pending = append(r.pending, Op{Kind: "shape", Shape: s, Style: st})
	r.mu.Unlock()
}

func (r *Recorder) Flush() error {
	if r.OnFlush != nil {
		r.OnFlush()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := append([]Op(nil), r.pending...)
	r.pending = r.pending[:0]
	if len(r.fail) > 0 {
		err := r.fail[0]
		r.fail = r.fail[1:]
		if err != nil {
			return err
		}
	}
	r.frames = append(r.frames, ops)
	return nil
}

// FailNext queues results for the next flushes; nil entries succeed.
func (r *Recorder) FailNext(errs ...error) {
	r.mu.Lock()
	r.fail = append(r.fail, errs...)
	r.mu.Unlock()
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Last returns the ops of the most recent flushed frame.
func (r *Recorder) Last() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// Texts lists the text drawn in a frame, in draw order.
func Texts(ops []Op) []string {
	var out []string
	for _, op := range ops {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}

package display

import (
	"reflect"
	"testing"

	"pendant-go/bus"
	"pendant-go/errcode"
	"pendant-go/internal/encoder"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
	"pendant-go/types"
)

func TestRenderEstopBanner(t *testing.T) {
	var r Recorder
	Render(&r, Frame{Estopped: true, Multiplier: types.MultiplierX10, Axis: types.AxisX})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	ops := r.Last()
	want := []string{"Mul: X10", "Axis: X", "ESTOP", "Vel: --"}
	if got := Texts(ops); !reflect.DeepEqual(got, want) {
		t.Fatalf("texts %q, want %q", got, want)
	}
	banner := -1
	for i, op := range ops {
		if op.Kind == "shape" && op.Shape.Kind == FilledRect {
			banner = i
		}
		if op.Text == "ESTOP" {
			if banner < 0 || banner > i {
				t.Fatal("banner must be drawn before its text")
			}
			if !op.Style.Inverted {
				t.Fatal("banner text should be inverted")
			}
		}
	}
}

func TestRenderRunningFrame(t *testing.T) {
	var r Recorder
	Render(&r, Frame{
		Multiplier: types.MultiplierNone, Axis: types.AxisZ,
		Position: -12, Delta: 3, Velocity: 12.5, HasVelocity: true,
	})
	_ = r.Flush()
	want := []string{"Mul: Off", "Axis: Z", "Pos: -12", "Vel: 12.5/s"}
	if got := Texts(r.Last()); !reflect.DeepEqual(got, want) {
		t.Fatalf("texts %q, want %q", got, want)
	}
	var tri *Shape
	for _, op := range r.Last() {
		if op.Kind == "shape" && op.Shape.Kind == FilledTriangle {
			s := op.Shape
			tri = &s
		}
	}
	if tri == nil || tri.P[0].Y != margin {
		t.Fatalf("expected an up arrow, got %+v", tri)
	}
}

func TestRenderIdleHasNoArrow(t *testing.T) {
	var r Recorder
	Render(&r, Frame{})
	_ = r.Flush()
	for _, op := range r.Last() {
		if op.Kind == "shape" {
			t.Fatalf("unexpected shape %+v", op.Shape)
		}
	}
}

type sinkFunc func(Frame)

func (f sinkFunc) Publish(fr Frame) { f(fr) }

func setup(t *testing.T, sink Sink) (*sched.Executor, *sched.ManualClock, *Recorder, *Task) {
	t.Helper()
	clk := sched.NewManualClock(1000, 0)
	e := sched.New(clk, sched.Options{})
	store := state.New(e, encoder.New(0, 400, 1000))
	rec := &Recorder{}
	task, err := Register(e, store, rec, sink, Config{Priority: 1, Period: 250}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(task.ID(), 250); err != nil {
		t.Fatal(err)
	}
	return e, clk, rec, task
}

func TestTransientFlushDropsFrame(t *testing.T) {
	var published []Frame
	e, clk, rec, task := setup(t, sinkFunc(func(f Frame) { published = append(published, f) }))
	rec.FailNext(errcode.Wrap(errcode.TransientBus, "flush", nil))

	clk.Set(250)
	if !e.Step() {
		t.Fatal("refresh did not run")
	}
	if rec.Frames() != 0 || task.Dropped() != 1 || len(published) != 0 {
		t.Fatalf("frames=%d dropped=%d published=%d", rec.Frames(), task.Dropped(), len(published))
	}
	if st := e.Stats(task.ID()); st.Errors != 0 {
		t.Fatalf("transient drop counted as error: %+v", st)
	}

	clk.Set(500)
	e.Step()
	if rec.Frames() != 1 || task.Rendered() != 1 {
		t.Fatalf("frames=%d rendered=%d", rec.Frames(), task.Rendered())
	}
	if len(published) != 1 || published[0].Seq != 2 || !published[0].Estopped {
		t.Fatalf("published %+v", published)
	}
}

func TestHardFlushFailureIsReported(t *testing.T) {
	e, clk, rec, task := setup(t, nil)
	rec.FailNext(errcode.Hardware)
	clk.Set(250)
	e.Step()
	st := e.Stats(task.ID())
	if st.Errors != 1 || task.Dropped() != 1 {
		t.Fatalf("stats %+v dropped %d", st, task.Dropped())
	}
	if e.Halted() {
		t.Fatal("a display failure must not halt")
	}
	clk.Set(500)
	if !e.Step() || rec.Frames() != 1 {
		t.Fatal("refresh should continue on the next period")
	}
}

func TestBusSinkRetainsLastFrame(t *testing.T) {
	b := bus.NewBus(2)
	s := NewBusSink(b.NewConnection(Name))
	s.Publish(Frame{Seq: 1})
	s.Publish(Frame{Seq: 2, Axis: types.AxisY})
	m, ok := b.Retained(TopicFrame)
	if !ok {
		t.Fatal("no retained frame")
	}
	if f := m.Payload.(Frame); f.Seq != 2 || f.Axis != types.AxisY {
		t.Fatalf("retained %+v", f)
	}
}

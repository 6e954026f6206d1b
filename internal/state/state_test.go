package state

import (
	"errors"
	"testing"

	"pendant-go/errcode"
	"pendant-go/internal/encoder"
	"pendant-go/internal/sched"
	"pendant-go/types"
)

// harness registers a single task that declares every resource and runs
// the given body inline.
func harness(t *testing.T) (*Store, func(func(c *sched.Context))) {
	t.Helper()
	e := sched.New(sched.NewManualClock(1000, 0), sched.Options{})
	s := New(e, encoder.New(0, 400, 1000))
	var body func(c *sched.Context)
	id, err := e.Register(sched.Spec{
		Name:      "probe",
		Priority:  1,
		Resources: []string{ResMultiplier, ResAxis, ResJog},
	}, func(c *sched.Context, _ any) error { body(c); return nil })
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Seal(); err != nil {
		t.Fatal(err)
	}
	return s, func(fn func(c *sched.Context)) {
		body = fn
		if err := e.Interrupt(id, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func TestInitialStateIsSafe(t *testing.T) {
	s, run := harness(t)
	run(func(c *sched.Context) {
		snap, err := s.Snapshot(c)
		if err != nil {
			t.Fatal(err)
		}
		if !snap.Estopped || snap.Multiplier != types.MultiplierNone || snap.Axis != types.AxisNone {
			t.Fatalf("initial snapshot %+v", snap)
		}
	})
}

func TestFieldsCommitIndependently(t *testing.T) {
	s, run := harness(t)
	run(func(c *sched.Context) {
		if err := s.SetMultiplier(c, types.MultiplierX10); err != nil {
			t.Fatal(err)
		}
		if err := s.SetAxis(c, types.AxisZ); err != nil {
			t.Fatal(err)
		}
		_ = sched.Lock(c, s.Jog, func(j *Jog) { j.Position = 42 })
	})
	s.Estop.Set(false)
	run(func(c *sched.Context) {
		snap, _ := s.Snapshot(c)
		if snap.Estopped || snap.Multiplier != types.MultiplierX10 || snap.Axis != types.AxisZ || snap.Position != 42 {
			t.Fatalf("snapshot %+v", snap)
		}
	})
}

func TestForceSafeOverridesLineUntilRecover(t *testing.T) {
	l := NewLatch()
	l.Set(false)
	if l.Estopped() {
		t.Fatal("released line should read not estopped")
	}
	l.ForceSafe(errcode.Hardware)
	l.ForceSafe(errcode.Deadline)
	l.Set(false) // a later commit cannot undo a latched fault
	if !l.Estopped() || !l.Faulted() || !errors.Is(l.Reason(), errcode.Hardware) {
		t.Fatalf("estopped=%v faulted=%v reason=%v", l.Estopped(), l.Faulted(), l.Reason())
	}

	boom := errors.New("gpio")
	if err := l.Recover(func() (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Fatal("failed re-read should be reported")
	}
	if !l.Faulted() {
		t.Fatal("fault must stay latched after a failed recover")
	}
	if err := l.Recover(func() (bool, error) { return false, nil }); err != nil {
		t.Fatal(err)
	}
	if l.Estopped() || l.Faulted() || l.Reason() != nil {
		t.Fatal("recover should re-read the released line")
	}
}

func TestSnapshotRequiresDeclaredResources(t *testing.T) {
	e := sched.New(sched.NewManualClock(1000, 0), sched.Options{})
	s := New(e, encoder.New(0, 400, 1000))
	var got error
	_, _ = e.Register(sched.Spec{Name: "sel", Priority: 2, Resources: []string{ResMultiplier, ResAxis}}, func(*sched.Context, any) error { return nil })
	id, _ := e.Register(sched.Spec{Name: "partial", Priority: 1, Resources: []string{ResMultiplier, ResJog}}, func(c *sched.Context, _ any) error {
		_, got = s.Snapshot(c)
		return nil
	})
	if err := e.Seal(); err != nil {
		t.Fatal(err)
	}
	_ = e.Interrupt(id, nil)
	if !errors.Is(got, errcode.UndeclaredResource) {
		t.Fatalf("got %v", got)
	}
}

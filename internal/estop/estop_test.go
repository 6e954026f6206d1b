package estop

import (
	"errors"
	"math/rand"
	"testing"

	"pendant-go/errcode"
	"pendant-go/internal/hw/hwsim"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
)

const pin = 7

func setup(t *testing.T) (*sched.Executor, *hwsim.Board, *state.Latch, *Task) {
	t.Helper()
	e := sched.New(sched.NewManualClock(1000, 0), sched.Options{})
	b := hwsim.New()
	l := state.NewLatch()
	e.OnFault(func(err error) { l.ForceSafe(err) })
	task, err := Register(e, b, l, Config{Pin: pin, Priority: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := task.Arm(); err != nil {
		t.Fatal(err)
	}
	return e, b, l, task
}

func TestEstoppedTracksMostRecentEdge(t *testing.T) {
	_, b, l, _ := setup(t)
	if !l.Estopped() {
		t.Fatal("must start estopped before any edge")
	}
	rng := rand.New(rand.NewSource(1))
	level, edged := false, false
	for i := 0; i < 200; i++ {
		next := rng.Intn(3) != 0
		if next != level {
			edged = true
		}
		level = next
		b.SetPin(pin, level)
		if b.Pending(pin) {
			t.Fatalf("step %d: pending flag left set", i)
		}
		want := level
		if !edged {
			want = true
		}
		if l.Estopped() != want {
			t.Fatalf("step %d: estopped=%v want %v", i, l.Estopped(), want)
		}
	}
}

func TestReadFailureForcesSafeThenHalts(t *testing.T) {
	e, b, l, _ := setup(t)
	b.SetPin(pin, true)
	b.SetPin(pin, false) // clear edge: estop released
	if l.Estopped() {
		t.Fatal("released")
	}
	b.FailRead(pin, errors.New("gpio"))
	b.SetPin(pin, true)
	if !l.Estopped() || !l.Faulted() {
		t.Fatal("safe state not forced")
	}
	if !e.Halted() || !errors.Is(e.HaltErr(), errcode.Hardware) {
		t.Fatalf("halted=%v err=%v", e.Halted(), e.HaltErr())
	}
}

func TestClearFailureForcesSafe(t *testing.T) {
	e, b, l, _ := setup(t)
	b.FailClear(pin, errors.New("ack"))
	b.SetPin(pin, true)
	b.SetPin(pin, false)
	if !l.Estopped() || !e.Halted() {
		t.Fatalf("estopped=%v halted=%v", l.Estopped(), e.Halted())
	}
}

func TestRecoverRereadsLine(t *testing.T) {
	_, b, l, task := setup(t)
	b.SetPin(pin, true)
	b.SetPin(pin, false)
	l.ForceSafe(errors.New("watchdog"))
	if !l.Estopped() {
		t.Fatal("fault must override the released line")
	}
	if err := task.Recover(); err != nil {
		t.Fatal(err)
	}
	if l.Estopped() || l.Faulted() {
		t.Fatal("recover should commit the released line")
	}
	b.SetPin(pin, true)
	if !l.Estopped() {
		t.Fatal("press after recover not seen")
	}
}

func TestRecoverRefusedAfterHalt(t *testing.T) {
	e, b, l, task := setup(t)
	b.FailRead(pin, errors.New("gpio"))
	b.SetPin(pin, true)
	b.FailRead(pin, nil)
	b.SetPin(pin, false)
	if !e.Halted() {
		t.Fatal("read failure should halt")
	}
	if err := task.Recover(); !errors.Is(err, sched.ErrHalted) {
		t.Fatalf("recover on halted executor: %v", err)
	}
	if !l.Estopped() || !l.Faulted() {
		t.Fatal("fault must stay latched")
	}
	b.SetPin(pin, true)
	b.SetPin(pin, false)
	b.SetPin(pin, true)
	if !l.Estopped() {
		t.Fatal("estop pressed while halted but latch released")
	}
}

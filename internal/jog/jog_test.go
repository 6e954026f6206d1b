package jog

import (
	"errors"
	"testing"

	"pendant-go/internal/encoder"
	"pendant-go/internal/hw/hwsim"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
	"pendant-go/types"
	"pendant-go/x/shmring"
)

const wheel = 0

type rig struct {
	e     *sched.Executor
	clk   *sched.ManualClock
	board *hwsim.Board
	store *state.Store
	ring  *shmring.Ring
	task  *Task
	probe sched.TaskID
	body  func(c *sched.Context)
	now   sched.Instant
}

func newRig(t *testing.T, ringSize int) *rig {
	t.Helper()
	r := &rig{clk: sched.NewManualClock(1000, 0), board: hwsim.New(), ring: shmring.New(ringSize)}
	r.board.SetModulus(wheel, 400)
	r.e = sched.New(r.clk, sched.Options{})
	r.store = state.New(r.e, encoder.New(wheel, 400, 1000))
	var err error
	if r.task, err = Register(r.e, r.board, r.store, r.ring, Config{Priority: 2, Period: 100}, nil); err != nil {
		t.Fatal(err)
	}
	r.probe, err = r.e.Register(sched.Spec{
		Name:      "probe",
		Priority:  1,
		Resources: []string{state.ResMultiplier, state.ResAxis, state.ResJog},
	}, func(c *sched.Context, _ any) error { r.body(c); return nil })
	if err != nil {
		t.Fatal(err)
	}
	if err := r.e.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := r.e.Start(r.task.ID(), 100); err != nil {
		t.Fatal(err)
	}
	return r
}

// tick advances to the next sampler release and runs it.
func (r *rig) tick(t *testing.T) {
	t.Helper()
	r.now += 100
	r.clk.Set(r.now)
	if !r.e.Step() {
		t.Fatalf("sampler did not run at %d", r.now)
	}
}

func (r *rig) with(fn func(c *sched.Context)) {
	r.body = fn
	_ = r.e.Interrupt(r.probe, nil)
}

func (r *rig) output() string {
	buf := make([]byte, r.ring.Cap())
	return string(buf[:r.ring.TryReadInto(buf)])
}

func (r *rig) snapshot(t *testing.T) state.Snapshot {
	t.Helper()
	var snap state.Snapshot
	r.with(func(c *sched.Context) {
		var err error
		if snap, err = r.store.Snapshot(c); err != nil {
			t.Fatal(err)
		}
	})
	return snap
}

func TestStepsRequireSelectionAndNoEstop(t *testing.T) {
	r := newRig(t, 64)

	r.tick(t) // boot: estopped, primes the tracker
	if got := r.output(); got != "STOP\n" {
		t.Fatalf("boot output %q", got)
	}

	r.store.Estop.Set(false)
	r.board.Turn(wheel, 5)
	r.tick(t)
	if got := r.output(); got != "" {
		t.Fatalf("no selection, got %q", got)
	}

	r.with(func(c *sched.Context) {
		_ = r.store.SetMultiplier(c, types.MultiplierX10)
		_ = r.store.SetAxis(c, types.AxisX)
	})
	r.board.Turn(wheel, -8) // 5 -> 397, across the wrap
	r.tick(t)
	if got := r.output(); got != "STEP:1,10,-8\n" {
		t.Fatalf("step output %q", got)
	}

	r.store.Estop.Set(true)
	r.board.Turn(wheel, 2)
	r.tick(t)
	r.board.Turn(wheel, 2)
	r.tick(t)
	if got := r.output(); got != "STOP\n" {
		t.Fatalf("estop output %q, want a single STOP", got)
	}
	if snap := r.snapshot(t); snap.Position != 5-8+2+2 {
		t.Fatalf("position %d", snap.Position)
	}

	r.store.Estop.Set(false)
	r.tick(t)
	r.store.Estop.Set(true)
	r.tick(t)
	if got := r.output(); got != "STOP\n" {
		t.Fatalf("second estop output %q", got)
	}
	if r.task.Stops() != 3 || r.task.Steps() != 1 {
		t.Fatalf("stops=%d steps=%d", r.task.Stops(), r.task.Steps())
	}
}

func TestCounterFailureLeavesStateAndRearms(t *testing.T) {
	r := newRig(t, 64)
	r.store.Estop.Set(false)
	r.tick(t)
	r.board.Turn(wheel, 3)
	r.tick(t)

	r.board.FailCounter(wheel, errors.New("spi"))
	r.board.Turn(wheel, 3)
	r.tick(t)
	if snap := r.snapshot(t); snap.Position != 3 || snap.Jog.Delta != 3 {
		t.Fatalf("state changed on failure: %+v", snap)
	}
	if st := r.e.Stats(r.task.ID()); st.Errors != 1 {
		t.Fatalf("stats %+v", st)
	}

	r.board.FailCounter(wheel, nil)
	r.tick(t) // still armed
	if snap := r.snapshot(t); snap.Position != 6 {
		t.Fatalf("position %d after recovery", snap.Position)
	}
}

func TestFullRingRetriesStop(t *testing.T) {
	r := newRig(t, 4)
	r.tick(t)
	r.tick(t)
	if r.task.Overflow() != 2 || r.task.Stops() != 0 {
		t.Fatalf("overflow=%d stops=%d", r.task.Overflow(), r.task.Stops())
	}
}

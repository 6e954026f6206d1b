package display

import (
	"log/slog"
	"sync/atomic"

	"pendant-go/bus"
	"pendant-go/errcode"
	"pendant-go/internal/sched"
	"pendant-go/internal/state"
)

const Name = "display"

type Config struct {
	Priority sched.Priority
	Period   sched.Duration
}

// Sink receives every frame that reached the panel.
type Sink interface {
	Publish(f Frame)
}

type Task struct {
	cfg   Config
	store *state.Store
	drv   Driver
	sink  Sink
	log   *slog.Logger
	id    sched.TaskID
	seq   uint32

	rendered atomic.Uint32
	dropped  atomic.Uint32
}

// Register adds the refresh task. It reads every state field, so it
// declares all of them.
func Register(e *sched.Executor, store *state.Store, drv Driver, sink Sink, cfg Config, log *slog.Logger) (*Task, error) {
	if log == nil {
		log = slog.Default()
	}
	t := &Task{cfg: cfg, store: store, drv: drv, sink: sink, log: log.With("component", Name)}
	id, err := e.Register(sched.Spec{
		Name:      Name,
		Priority:  cfg.Priority,
		Period:    cfg.Period,
		Resources: []string{state.ResMultiplier, state.ResAxis, state.ResJog},
	}, sched.Periodic(cfg.Period, t.refresh))
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

func (t *Task) ID() sched.TaskID { return t.id }

func (t *Task) refresh(c *sched.Context) error {
	snap, err := t.store.Snapshot(c)
	if err != nil {
		return err
	}
	t.seq++
	f := FrameFrom(snap, t.seq)
	Render(t.drv, f)
	c.Checkpoint()

	if err := t.drv.Flush(); err != nil {
		// the frame is gone; the next period draws a fresh one
		n := t.dropped.Add(1)
		if errcode.Transient(err) {
			t.log.Debug("frame dropped", "seq", f.Seq, "dropped", n, "err", err)
			return nil
		}
		return err
	}
	t.rendered.Add(1)
	if t.sink != nil {
		t.sink.Publish(f)
	}
	return nil
}

func (t *Task) Rendered() uint32 { return t.rendered.Load() }
func (t *Task) Dropped() uint32  { return t.dropped.Load() }

// TopicFrame carries the last rendered frame, retained.
var TopicFrame = bus.T("pendant", "frame")

// BusSink publishes frames on the bus.
type BusSink struct{ conn *bus.Connection }

func NewBusSink(conn *bus.Connection) *BusSink { return &BusSink{conn: conn} }

func (s *BusSink) Publish(f Frame) {
	s.conn.Publish(s.conn.NewMessage(TopicFrame, f, true))
}

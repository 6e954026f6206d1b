// Package heartbeat periodically publishes scheduler statistics and the
// estop state for diagnostics. It runs outside the scheduler, in thread
// mode, and never touches the ceiling-protected state.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"pendant-go/bus"
	"pendant-go/internal/config"
	"pendant-go/internal/sched"
)

var (
	TopicStats  = bus.T("pendant", "stats")
	topicConfig = bus.T(config.TopicSection, "heartbeat")
)

// TaskStats is one task's counters.
type TaskStats struct {
	Name string
	sched.Stats
}

// Beat is the payload on TopicStats.
type Beat struct {
	Seq      uint64
	At       time.Time
	Estopped bool
	Faulted  bool
	Halted   bool
	Tasks    []TaskStats
}

// Source reports what a beat contains besides the task counters.
type Source interface {
	Estopped() bool
	Faulted() bool
}

type Service struct {
	exec  *sched.Executor
	tasks []sched.TaskID
	src   Source
	log   *slog.Logger
	seq   uint64
}

func New(exec *sched.Executor, src Source, log *slog.Logger, tasks ...sched.TaskID) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{exec: exec, tasks: tasks, src: src, log: log.With("component", "heartbeat")}
}

// Beat builds the next beat.
func (s *Service) Beat() Beat {
	s.seq++
	b := Beat{
		Seq:      s.seq,
		At:       time.Now(),
		Estopped: s.src.Estopped(),
		Faulted:  s.src.Faulted(),
		Halted:   s.exec.Halted(),
	}
	for _, id := range s.tasks {
		b.Tasks = append(b.Tasks, TaskStats{Name: s.exec.TaskName(id), Stats: s.exec.Stats(id)})
	}
	return b
}

// Run publishes a beat every interval until ctx ends. A retained
// config/heartbeat message with a positive Interval changes the period.
func (s *Service) Run(ctx context.Context, conn *bus.Connection, interval time.Duration) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	if interval <= 0 {
		interval = 10 * time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("heartbeat stopping")
			return
		case <-tick.C:
			b := s.Beat()
			conn.Publish(conn.NewMessage(TopicStats, b, true))
			s.log.Info("heartbeat", "seq", b.Seq, "estopped", b.Estopped, "halted", b.Halted)
			for _, t := range b.Tasks {
				if t.Misses > 0 || t.Drops > 0 || t.Errors > 0 {
					s.log.Warn("task counters", "task", t.Name, "misses", t.Misses, "drops", t.Drops, "errors", t.Errors)
				}
			}
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if hb, ok := msg.Payload.(config.Heartbeat); ok && hb.Interval > 0 && hb.Interval != interval {
				interval = hb.Interval
				tick.Reset(interval)
				s.log.Info("heartbeat interval changed", "interval", interval)
			}
		}
	}
}

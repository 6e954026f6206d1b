// Package hostlink moves framed report lines from the jog sampler's ring
// to the controller host over a pluggable transport.
package hostlink

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"pendant-go/bus"
	"pendant-go/internal/util"
	"pendant-go/x/shmring"
)

// TopicState carries the link state, retained.
var TopicState = bus.T("hostlink", "state")

// Config selects and parameterises the transport.
type Config struct {
	Transport string `yaml:"transport"` // "uart", "file" or a registered name
	Device    string `yaml:"device"`    // file: path of a tty or fifo
	Port      string `yaml:"port"`      // uart: "uart0" or "uart1"
	Baud      int    `yaml:"baud"`
	TxPin     int    `yaml:"tx_pin"` // platform pin numbers for uart
	RxPin     int    `yaml:"rx_pin"`
}

// State is the payload published on TopicState.
type State struct {
	Level  string // "idle", "up", "degraded", "error"
	Status string
	Err    string
	At     time.Time
}

// -----------------------------------------------------------------------------
// Transports
// -----------------------------------------------------------------------------

// Transport opens the link. Each Open yields a fresh writer; the service
// reopens after a write failure.
type Transport interface {
	Open(ctx context.Context) (io.WriteCloser, error)
	String() string
}

type Factory func(Config) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// RegisterTransport adds a transport under name, replacing any earlier one.
func RegisterTransport(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// UARTDial is injected by platform code that owns a UART.
var UARTDial func(ctx context.Context, cfg Config) (io.WriteCloser, error)

// NewTransport resolves cfg.Transport.
func NewTransport(cfg Config) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Transport]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Transport {
	case "uart":
		return dialFunc{"uart", func(ctx context.Context) (io.WriteCloser, error) {
			if UARTDial == nil {
				return nil, errors.New("uart dial not provided by this platform")
			}
			return UARTDial(ctx, cfg)
		}}, nil
	case "file":
		if cfg.Device == "" {
			return nil, errors.New("file transport requires a device path")
		}
		return dialFunc{"file", func(context.Context) (io.WriteCloser, error) {
			return openDevice(cfg.Device)
		}}, nil
	default:
		return nil, errors.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Writer wraps an already open stream, such as stdout in the simulator.
// Close does not close w.
func Writer(name string, w io.Writer) Transport {
	return dialFunc{name, func(context.Context) (io.WriteCloser, error) { return nopCloser{w}, nil }}
}

type dialFunc struct {
	name string
	open func(ctx context.Context) (io.WriteCloser, error)
}

func (d dialFunc) Open(ctx context.Context) (io.WriteCloser, error) { return d.open(ctx) }
func (d dialFunc) String() string                                   { return d.name }

func openDevice(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	ring *shmring.Ring
	tr   Transport
	conn *bus.Connection
	log  *slog.Logger

	// Backoff bounds between reopen attempts.
	MinBackoff, MaxBackoff time.Duration

	written atomic.Uint64
	lost    atomic.Uint64
}

// New returns a service draining ring into tr. conn may be nil.
func New(ring *shmring.Ring, tr Transport, conn *bus.Connection, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ring:       ring,
		tr:         tr,
		conn:       conn,
		log:        log.With("component", "hostlink", "transport", tr.String()),
		MinBackoff: 250 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
	}
}

func (s *Service) Written() uint64 { return s.written.Load() }
func (s *Service) Lost() uint64    { return s.lost.Load() }

// Run supervises the link until ctx ends.
func (s *Service) Run(ctx context.Context) {
	backoff := backoffSeq(s.MinBackoff, s.MaxBackoff)
	s.publishState("idle", "opening", nil)
	for {
		if ctx.Err() != nil {
			return
		}
		w, err := s.tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "open_failed_retrying", err)
			if !util.Sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		err = s.pump(ctx, w)
		_ = w.Close()
		if err == nil {
			s.publishState("idle", "stopped", nil)
			return
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", err)
		if !util.Sleep(ctx, delay) {
			return
		}
	}
}

// pump copies whatever the ring holds, then waits for the empty to
// non-empty edge. Bytes taken from the ring when a write fails are lost.
func (s *Service) pump(ctx context.Context, w io.Writer) error {
	var buf [128]byte
	for {
		if n := s.ring.TryReadInto(buf[:]); n > 0 {
			m, err := w.Write(buf[:n])
			s.written.Add(uint64(m))
			if err != nil {
				s.lost.Add(uint64(n - m))
				return errors.Wrap(err, "hostlink write")
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.ring.Readable():
		}
	}
}

func (s *Service) publishState(level, status string, err error) {
	if err != nil {
		s.log.Warn("link "+status, "err", err)
	} else {
		s.log.Info("link " + status)
	}
	if s.conn == nil {
		return
	}
	st := State{Level: level, Status: status, At: time.Now()}
	if err != nil {
		st.Err = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

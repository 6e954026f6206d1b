//go:build linux

// Package linuxgpio backs hw.IO with the Linux GPIO character device.
// Edge events arrive on the gpiocdev watcher goroutine, which plays the
// role of interrupt context. The kernel consumes each event as it is
// delivered, so there is no pending flag left to clear.
package linuxgpio

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
	"pendant-go/types"
)

type Input struct {
	Pin       hw.Pin
	ActiveLow bool
}

type Encoder struct {
	ID      hw.Counter
	A, B    hw.Pin
	Modulus uint16
}

type Config struct {
	Chip     string // e.g. "gpiochip0"
	Consumer string
	Inputs   []Input
	Encoders []Encoder
}

type input struct {
	cfg  Input
	line *gpiocdev.Line
	seq  atomic.Uint32
}

// lines is set after the request returns, while the watcher may already be
// delivering events.
type encoder struct {
	lines atomic.Pointer[gpiocdev.Lines]
	quad  *hw.Quadrature
}

type Board struct {
	cfg      Config
	log      *slog.Logger
	mu       sync.Mutex
	inputs   map[hw.Pin]*input
	encoders map[hw.Counter]*encoder
}

var _ hw.IO = (*Board)(nil)

// Open requests every configured line. On failure, lines already taken are
// released.
func Open(cfg Config, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "pendant"
	}
	b := &Board{
		cfg:      cfg,
		log:      log.With("component", "linuxgpio"),
		inputs:   make(map[hw.Pin]*input),
		encoders: make(map[hw.Counter]*encoder),
	}
	for _, in := range cfg.Inputs {
		l, err := gpiocdev.RequestLine(cfg.Chip, int(in.Pin), b.inputOpts(in)...)
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "request line %d on %s", in.Pin, cfg.Chip)
		}
		b.inputs[in.Pin] = &input{cfg: in, line: l}
	}
	for _, enc := range cfg.Encoders {
		e := &encoder{quad: hw.NewQuadrature(enc.Modulus)}
		ls, err := gpiocdev.RequestLines(cfg.Chip, []int{int(enc.A), int(enc.B)},
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithConsumer(cfg.Consumer),
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { e.sample() }))
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "request encoder %d lines %d/%d", enc.ID, enc.A, enc.B)
		}
		e.lines.Store(ls)
		e.sample()
		b.encoders[enc.ID] = e
	}
	b.log.Info("gpio ready", "chip", cfg.Chip, "inputs", len(b.inputs), "encoders", len(b.encoders))
	return b, nil
}

func (b *Board) inputOpts(in Input) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(b.cfg.Consumer),
	}
	if in.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	return opts
}

func (e *encoder) sample() {
	var v [2]int
	ls := e.lines.Load()
	if ls == nil || ls.Values(v[:]) != nil {
		return
	}
	e.quad.Update(v[0] == 1, v[1] == 1)
}

// ReadPin copies the line under the lock and reads it outside: the estop
// handler calls it from the watcher goroutine, which Close waits on.
func (b *Board) ReadPin(p hw.Pin) (bool, error) {
	b.mu.Lock()
	var line *gpiocdev.Line
	if in := b.inputs[p]; in != nil {
		line = in.line
	}
	b.mu.Unlock()
	if line == nil {
		return false, errcode.New(errcode.UnknownPin, "read_pin", "")
	}
	v, err := line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "read line %d", p)
	}
	return v == 1, nil
}

func (b *Board) ReadCounter(c hw.Counter) (uint16, types.Direction, error) {
	b.mu.Lock()
	e := b.encoders[c]
	b.mu.Unlock()
	if e == nil {
		return 0, 0, errcode.New(errcode.UnknownPin, "read_counter", "")
	}
	n, d := e.quad.Read()
	return n, d, nil
}

// EnableEdgeInterrupt re-requests the input with edge detection, since the
// event handler can only be attached when a line is requested.
func (b *Board) EnableEdgeInterrupt(p hw.Pin, edge types.Edge, isr hw.EdgeHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	in := b.inputs[p]
	if in == nil {
		return errcode.New(errcode.UnknownPin, "enable_irq", "")
	}
	var detect gpiocdev.LineReqOption
	switch edge {
	case types.EdgeRising:
		detect = gpiocdev.WithRisingEdge
	case types.EdgeFalling:
		detect = gpiocdev.WithFallingEdge
	default:
		detect = gpiocdev.WithBothEdges
	}
	opts := append(b.inputOpts(in.cfg), detect, gpiocdev.WithEventHandler(func(ev gpiocdev.LineEvent) {
		e := types.EdgeFalling
		if ev.Type == gpiocdev.LineEventRisingEdge {
			e = types.EdgeRising
		}
		isr(types.EstopEvent{Edge: e, Seq: in.seq.Add(1)})
	}))
	_ = in.line.Close()
	l, err := gpiocdev.RequestLine(b.cfg.Chip, int(p), opts...)
	if err != nil {
		return errors.Wrapf(err, "request edge events on line %d", p)
	}
	in.line = l
	return nil
}

func (b *Board) ClearInterrupt(p hw.Pin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inputs[p] == nil {
		return errcode.New(errcode.UnknownPin, "clear_irq", "")
	}
	return nil
}

// Close releases every line. The maps are detached under the lock and the
// lines closed outside it, so a handler still running in ReadPin can finish.
func (b *Board) Close() error {
	b.mu.Lock()
	inputs, encoders := b.inputs, b.encoders
	b.inputs = map[hw.Pin]*input{}
	b.encoders = map[hw.Counter]*encoder{}
	b.mu.Unlock()

	var errs error
	for _, in := range inputs {
		if in.line != nil {
			errs = multierr.Append(errs, in.line.Close())
		}
	}
	for _, e := range encoders {
		if ls := e.lines.Load(); ls != nil {
			errs = multierr.Append(errs, ls.Close())
		}
	}
	return errs
}

// Package app wires the pendant tasks onto one executor.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"pendant-go/bus"
	"pendant-go/internal/config"
	"pendant-go/internal/display"
	"pendant-go/internal/encoder"
	"pendant-go/internal/estop"
	"pendant-go/internal/hw"
	"pendant-go/internal/jog"
	"pendant-go/internal/sched"
	"pendant-go/internal/selector"
	"pendant-go/internal/state"
	"pendant-go/types"
	"pendant-go/x/shmring"
)

type Options struct {
	Config  config.Config
	Clock   sched.Clock // nil: host clock at Config.Clock.Hz
	IO      hw.IO
	Display display.Driver
	Bus     *bus.Bus // nil: a private bus
	Logger  *slog.Logger
}

// Pendant is a sealed executor with every task registered.
type Pendant struct {
	Config config.Config
	Exec   *sched.Executor
	Store  *state.Store
	Bus    *bus.Bus
	Link   *shmring.Ring // host-link records, drained by hostlink.Service

	Estop    *estop.Task
	Selector *selector.Task
	Jog      *jog.Task
	Display  *display.Task

	log *slog.Logger
}

func New(o Options) (*Pendant, error) {
	cfg := o.Config
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := o.Clock
	if clock == nil {
		clock = sched.NewHostClock(cfg.Clock.Hz)
	}
	b := o.Bus
	if b == nil {
		b = bus.NewBus(4)
	}
	hz := clock.Hz()

	e := sched.New(clock, sched.Options{Logger: log, MaxMissed: cfg.Scheduler.MaxMissed})
	p := &Pendant{
		Config: cfg,
		Exec:   e,
		Store:  state.New(e, encoder.New(hw.Counter(cfg.Encoder.Counter), cfg.Encoder.PPR, hz)),
		Bus:    b,
		Link:   shmring.New(cfg.HostLink.RingSize),
		log:    log.With("component", "app"),
	}
	// the safe state is forced before anything else observes the halt
	e.OnFault(func(err error) { p.Store.Estop.ForceSafe(err) })

	var err error
	if p.Estop, err = estop.Register(e, o.IO, p.Store.Estop, estop.Config{
		Pin:      hw.Pin(cfg.Estop.Pin),
		Priority: sched.Priority(cfg.Estop.Priority),
	}, log); err != nil {
		return nil, errors.Wrap(err, "register estop")
	}

	mul, axis := Choices(cfg.Selector)
	if p.Selector, err = selector.Register(e, o.IO, p.Store, selector.Config{
		Priority:    sched.Priority(cfg.Selector.Priority),
		Period:      sched.Cycles(hz, cfg.Selector.Period),
		StablePolls: cfg.Selector.StablePolls,
		Multiplier:  mul,
		Axis:        axis,
	}, log); err != nil {
		return nil, errors.Wrap(err, "register selector")
	}

	if p.Jog, err = jog.Register(e, o.IO, p.Store, p.Link, jog.Config{
		Priority: sched.Priority(cfg.Encoder.Priority),
		Period:   sched.Cycles(hz, cfg.Encoder.Period),
	}, log); err != nil {
		return nil, errors.Wrap(err, "register jog")
	}

	if p.Display, err = display.Register(e, p.Store, o.Display, display.NewBusSink(b.NewConnection(display.Name)), display.Config{
		Priority: sched.Priority(cfg.Display.Priority),
		Period:   sched.Cycles(hz, cfg.Display.Period),
	}, log); err != nil {
		return nil, errors.Wrap(err, "register display")
	}

	if err := e.Seal(); err != nil {
		return nil, err
	}
	return p, nil
}

// Choices converts configured positions to selector choices. Positions
// with unknown values are skipped; config validation reports them.
func Choices(c config.Selector) ([]selector.Choice[types.Multiplier], []selector.Choice[types.Axis]) {
	var mul []selector.Choice[types.Multiplier]
	for _, pos := range c.Multiplier {
		if v, ok := config.ParseMultiplier(pos.Value); ok {
			mul = append(mul, selector.Choice[types.Multiplier]{Pin: hw.Pin(pos.Pin), Value: v})
		}
	}
	var axis []selector.Choice[types.Axis]
	for _, pos := range c.Axis {
		if v, ok := config.ParseAxis(pos.Value); ok {
			axis = append(axis, selector.Choice[types.Axis]{Pin: hw.Pin(pos.Pin), Value: v})
		}
	}
	return mul, axis
}

// Start arms the estop interrupt and the first release of every periodic
// task, one period from now.
func (p *Pendant) Start() error {
	if err := p.Estop.Arm(); err != nil {
		return err
	}
	for _, t := range []struct {
		id     sched.TaskID
		period sched.Duration
	}{
		{p.Selector.ID(), p.period(p.Config.Selector.Period)},
		{p.Jog.ID(), p.period(p.Config.Encoder.Period)},
		{p.Display.ID(), p.period(p.Config.Display.Period)},
	} {
		if err := p.Exec.Start(t.id, t.period); err != nil {
			return errors.Wrapf(err, "start %s", p.Exec.TaskName(t.id))
		}
	}
	p.log.Info("pendant started", "board", p.Config.Board)
	return nil
}

func (p *Pendant) period(d time.Duration) sched.Duration {
	return sched.Cycles(p.Exec.Clock().Hz(), d)
}

// Run drives the executor until ctx ends or a fault halts it.
func (p *Pendant) Run(ctx context.Context) error {
	return p.Exec.Run(ctx)
}

// Tasks lists every task for diagnostics.
func (p *Pendant) Tasks() []sched.TaskID {
	return []sched.TaskID{p.Estop.ID(), p.Selector.ID(), p.Jog.ID(), p.Display.ID()}
}

// InputPins lists the plain inputs a hardware backend has to configure:
// the estop line first, then every selector position.
func InputPins(c config.Config) []hw.Pin {
	pins := []hw.Pin{hw.Pin(c.Estop.Pin)}
	for _, p := range c.Selector.Multiplier {
		pins = append(pins, hw.Pin(p.Pin))
	}
	for _, p := range c.Selector.Axis {
		pins = append(pins, hw.Pin(p.Pin))
	}
	return pins
}

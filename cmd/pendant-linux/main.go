//go:build linux

// Command pendant-linux runs the pendant on a Linux board, reading inputs
// from the GPIO character device. The panel is rendered to a PNG file and
// host-link records go to a serial device.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pendant-go/bus"
	"pendant-go/internal/app"
	"pendant-go/internal/config"
	"pendant-go/internal/display"
	"pendant-go/internal/display/pngpanel"
	"pendant-go/internal/heartbeat"
	"pendant-go/internal/hostlink"
	"pendant-go/internal/hw"
	"pendant-go/internal/hw/linuxgpio"
	"pendant-go/internal/sched"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config (default: embedded linux board)")
	flag.Parse()

	cfg, err := config.ForBoard("linux")
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Log, os.Stderr)

	os.Exit(run(cfg, log))
}

func gpioConfig(cfg config.Config) linuxgpio.Config {
	gc := linuxgpio.Config{Chip: cfg.GPIO.Chip, Consumer: "pendant"}
	for i, p := range app.InputPins(cfg) {
		activeLow := cfg.Selector.ActiveLow
		if i == 0 {
			activeLow = cfg.Estop.ActiveLow
		}
		gc.Inputs = append(gc.Inputs, linuxgpio.Input{Pin: p, ActiveLow: activeLow})
	}
	gc.Encoders = []linuxgpio.Encoder{{
		ID:      hw.Counter(cfg.Encoder.Counter),
		A:       hw.Pin(cfg.Encoder.PinA),
		B:       hw.Pin(cfg.Encoder.PinB),
		Modulus: cfg.Encoder.PPR,
	}}
	return gc
}

func run(cfg config.Config, log *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board, err := linuxgpio.Open(gpioConfig(cfg), log)
	if err != nil {
		log.Error("gpio", "err", err)
		return 1
	}
	defer board.Close()

	var drv display.Driver = &display.Recorder{}
	if cfg.Display.PNG != "" {
		drv = pngpanel.New(cfg.Display.PNG, cfg.Display.Scale)
	}

	b := bus.NewBus(8)
	config.Publish(b.NewConnection("config"), cfg)
	p, err := app.New(app.Options{Config: cfg, IO: board, Display: drv, Bus: b, Logger: log})
	if err != nil {
		log.Error("setup", "err", err)
		return 1
	}

	tr, err := hostlink.NewTransport(cfg.HostLink.Config)
	if err != nil {
		log.Error("hostlink", "err", err)
		return 1
	}
	go hostlink.New(p.Link, tr, b.NewConnection("hostlink"), log).Run(ctx)
	go heartbeat.New(p.Exec, p.Store.Estop, log, p.Tasks()...).Run(ctx, b.NewConnection("heartbeat"), cfg.Heartbeat.Interval)

	if err := p.Start(); err != nil {
		log.Error("start", "err", err)
		return 1
	}
	if err := p.Run(ctx); errors.Is(err, sched.ErrHalted) {
		log.Error("pendant halted", "cause", p.Exec.HaltErr())
		return 2
	}
	return 0
}

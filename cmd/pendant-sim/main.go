// Command pendant-sim runs the pendant on the host against a simulated
// board. Inputs come from a YAML script, the panel is written to a PNG and
// host-link records go to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"pendant-go/bus"
	"pendant-go/internal/app"
	"pendant-go/internal/config"
	"pendant-go/internal/display"
	"pendant-go/internal/display/pngpanel"
	"pendant-go/internal/heartbeat"
	"pendant-go/internal/hostlink"
	"pendant-go/internal/hw"
	"pendant-go/internal/hw/hwsim"
	"pendant-go/internal/sched"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config (default: embedded sim board)")
	scriptPath := flag.String("script", "", "YAML input script (default: built-in demo)")
	pngPath := flag.String("png", "", "panel PNG path, overrides display.png")
	runFor := flag.Duration("for", 6*time.Second, "stop after this long; 0 runs until interrupted")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			slog.Error("config", "err", err)
			os.Exit(1)
		}
	}
	if *pngPath != "" {
		cfg.Display.PNG = *pngPath
	}
	log := app.NewLogger(cfg.Log, os.Stderr)

	raw := []byte(demo)
	if *scriptPath != "" {
		var err error
		if raw, err = os.ReadFile(*scriptPath); err != nil {
			log.Error("script", "err", err)
			os.Exit(1)
		}
	}
	script, err := parseScript(raw)
	if err != nil {
		log.Error("script", "err", err)
		os.Exit(1)
	}

	os.Exit(run(cfg, script, *runFor, log))
}

func run(cfg config.Config, script []Event, runFor time.Duration, log *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	board := hwsim.New()
	board.SetModulus(hw.Counter(cfg.Encoder.Counter), cfg.Encoder.PPR)

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

	tr, err := transport(cfg.HostLink.Config)
	if err != nil {
		log.Error("hostlink", "err", err)
		return 1
	}
	go hostlink.New(p.Link, tr, b.NewConnection("hostlink"), log).Run(ctx)
	go heartbeat.New(p.Exec, p.Store.Estop, log, p.Tasks()...).Run(ctx, b.NewConnection("heartbeat"), cfg.Heartbeat.Interval)
	go monitor(ctx, b.NewConnection("monitor"), log)

	if err := p.Start(); err != nil {
		log.Error("start", "err", err)
		return 1
	}
	go (&player{board: board, cfg: cfg, log: log.With("component", "script")}).play(ctx, script)

	err = p.Run(ctx)
	switch {
	case errors.Is(err, sched.ErrHalted):
		log.Error("pendant halted", "cause", p.Exec.HaltErr())
		return 2
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
		log.Error("run", "err", err)
		return 1
	}
	log.Info("stopped", "frames", p.Display.Rendered(), "dropped", p.Display.Dropped())
	return 0
}

func transport(c hostlink.Config) (hostlink.Transport, error) {
	if c.Transport == "" || c.Transport == "stdout" {
		return hostlink.Writer("stdout", os.Stdout), nil
	}
	return hostlink.NewTransport(c)
}

// monitor logs every frame that reached the panel.
func monitor(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	sub := conn.Subscribe(display.TopicFrame)
	defer conn.Unsubscribe(sub)
	log = log.With("component", "monitor")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			f := m.Payload.(display.Frame)
			l := f.Lines()
			log.Debug("frame", "seq", f.Seq, "panel", strings.Join(l[:], " | "))
		}
	}
}

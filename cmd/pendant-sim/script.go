package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"pendant-go/internal/config"
	"pendant-go/internal/hw"
	"pendant-go/internal/hw/hwsim"
)

// Event is one scripted input change, at an offset from start.
//
//	- {at: 500ms, estop: false}
//	- {at: 1s, multiplier: x10, axis: y}
//	- {at: 2s, turn: 25}
type Event struct {
	At         time.Duration `yaml:"at"`
	Estop      *bool         `yaml:"estop"`
	Multiplier *string       `yaml:"multiplier"` // "" or "off" releases the switch
	Axis       *string       `yaml:"axis"`
	Turn       int           `yaml:"turn"`
}

const demo = `
- {at: 300ms, estop: true}
- {at: 400ms, estop: false}
- {at: 600ms, multiplier: x10, axis: x}
- {at: 1200ms, turn: 12}
- {at: 1800ms, turn: -30}
- {at: 2400ms, multiplier: x100, axis: z}
- {at: 3000ms, turn: 4}
- {at: 3600ms, estop: true}
- {at: 3700ms, turn: 9}
- {at: 4500ms, estop: false}
- {at: 5000ms, multiplier: off, axis: off}
`

func parseScript(raw []byte) ([]Event, error) {
	var evs []Event
	if err := yaml.Unmarshal(raw, &evs); err != nil {
		return nil, errors.Wrap(err, "decode script")
	}
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].At < evs[j].At })
	return evs, nil
}

// player drives the simulated board.
type player struct {
	board *hwsim.Board
	cfg   config.Config
	log   *slog.Logger
}

func (p *player) play(ctx context.Context, evs []Event) {
	start := time.Now()
	for _, ev := range evs {
		wait := time.Until(start.Add(ev.At))
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		p.apply(ev)
	}
	p.log.Info("script finished", "events", len(evs))
}

func (p *player) apply(ev Event) {
	if ev.Estop != nil {
		p.log.Info("input", "estop", *ev.Estop)
		p.board.SetPin(hw.Pin(p.cfg.Estop.Pin), *ev.Estop)
	}
	if ev.Multiplier != nil {
		p.log.Info("input", "multiplier", *ev.Multiplier)
		for _, pos := range p.cfg.Selector.Multiplier {
			p.board.SetPin(hw.Pin(pos.Pin), pos.Value == *ev.Multiplier)
		}
	}
	if ev.Axis != nil {
		p.log.Info("input", "axis", *ev.Axis)
		for _, pos := range p.cfg.Selector.Axis {
			p.board.SetPin(hw.Pin(pos.Pin), pos.Value == *ev.Axis)
		}
	}
	if ev.Turn != 0 {
		p.log.Info("input", "turn", ev.Turn)
		p.board.Turn(hw.Counter(p.cfg.Encoder.Counter), ev.Turn)
	}
}

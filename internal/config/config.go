// Package config loads the pendant configuration from YAML. Each board has
// an embedded default so targets without a file system can boot.
package config

import (
	"bytes"
	"embed"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"pendant-go/bus"
	"pendant-go/internal/hostlink"
)

//go:embed boards/*.yaml
var boards embed.FS

type Config struct {
	Board     string    `yaml:"board"`
	Clock     Clock     `yaml:"clock"`
	Scheduler Scheduler `yaml:"scheduler"`
	Estop     Estop     `yaml:"estop"`
	Selector  Selector  `yaml:"selector"`
	Encoder   Encoder   `yaml:"encoder"`
	Display   Display   `yaml:"display"`
	HostLink  HostLink  `yaml:"hostlink"`
	GPIO      GPIO      `yaml:"gpio"`
	Heartbeat Heartbeat `yaml:"heartbeat"`
	Log       Log       `yaml:"log"`
}

type Clock struct {
	Hz uint32 `yaml:"hz"`
}

type Scheduler struct {
	MaxMissed int `yaml:"max_missed"`
}

type Estop struct {
	Pin       int  `yaml:"pin"`
	Priority  int  `yaml:"priority"`
	ActiveLow bool `yaml:"active_low"`
}

// Position binds a switch input to the value it selects.
type Position struct {
	Pin   int    `yaml:"pin"`
	Value string `yaml:"value"`
}

type Selector struct {
	Priority    int           `yaml:"priority"`
	Period      time.Duration `yaml:"period"`
	StablePolls int           `yaml:"stable_polls"`
	ActiveLow   bool          `yaml:"active_low"`
	Multiplier  []Position    `yaml:"multiplier"` // priority order
	Axis        []Position    `yaml:"axis"`
}

type Encoder struct {
	Counter  int           `yaml:"counter"`
	PPR      uint16        `yaml:"ppr"`
	PinA     int           `yaml:"pin_a"` // software decoding only
	PinB     int           `yaml:"pin_b"`
	Priority int           `yaml:"priority"`
	Period   time.Duration `yaml:"period"`
}

type Display struct {
	Priority int           `yaml:"priority"`
	Period   time.Duration `yaml:"period"`
	Address  uint16        `yaml:"address"` // i2c
	Flip     bool          `yaml:"flip"`
	PNG      string        `yaml:"png"` // pngpanel output path
	Scale    int           `yaml:"scale"`
}

type HostLink struct {
	hostlink.Config `yaml:",inline"`
	RingSize        int `yaml:"ring_size"`
}

type GPIO struct {
	Chip string `yaml:"chip"`
}

type Heartbeat struct {
	Interval time.Duration `yaml:"interval"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// ForBoard returns the embedded configuration of a board.
func ForBoard(board string) (Config, error) {
	raw, err := boards.ReadFile("boards/" + board + ".yaml")
	if err != nil {
		return Config{}, errors.Errorf("no embedded config for board %q", board)
	}
	return Parse(raw)
}

// Default is the simulator configuration.
func Default() Config {
	c, err := ForBoard("sim")
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads and parses a YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	c, err := Parse(raw)
	return c, errors.Wrapf(err, "config %s", path)
}

// Parse decodes YAML, rejecting unknown keys, then normalises and
// validates the result.
func Parse(raw []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	c = Normalize(c)
	if err := Validate(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Normalize fills zero fields with defaults. It returns a copy.
func Normalize(c Config) Config {
	if c.Clock.Hz == 0 {
		c.Clock.Hz = 1_000_000
	}
	if c.Scheduler.MaxMissed == 0 {
		c.Scheduler.MaxMissed = 3
	}
	if c.Estop.Priority == 0 {
		c.Estop.Priority = 3
	}
	if c.Selector.Priority == 0 {
		c.Selector.Priority = 2
	}
	if c.Selector.Period == 0 {
		c.Selector.Period = 100 * time.Millisecond
	}
	if c.Selector.StablePolls == 0 {
		c.Selector.StablePolls = 2
	}
	if c.Encoder.Priority == 0 {
		c.Encoder.Priority = 2
	}
	if c.Encoder.Period == 0 {
		c.Encoder.Period = 100 * time.Millisecond
	}
	if c.Display.Priority == 0 {
		c.Display.Priority = 1
	}
	if c.Display.Period == 0 {
		c.Display.Period = 250 * time.Millisecond
	}
	if c.Display.Address == 0 {
		c.Display.Address = 0x3c
	}
	if c.Display.Scale == 0 {
		c.Display.Scale = 1
	}
	if c.HostLink.RingSize == 0 {
		c.HostLink.RingSize = 256
	}
	if c.HostLink.Baud == 0 {
		c.HostLink.Baud = 115200
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = "gpiochip0"
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return c
}

// SlogLevel maps Log.Level; Validate has already rejected unknown names.
func (l Log) SlogLevel() slog.Level {
	var lv slog.Level
	_ = lv.UnmarshalText([]byte(l.Level))
	return lv
}

// TopicSection is the bus prefix for Publish.
const TopicSection = "config"

// Publish puts each section on the bus as a retained config/<section>
// message so services can pick up their settings.
func Publish(conn *bus.Connection, c Config) {
	sections := map[string]any{
		"estop":     c.Estop,
		"selector":  c.Selector,
		"encoder":   c.Encoder,
		"display":   c.Display,
		"hostlink":  c.HostLink,
		"heartbeat": c.Heartbeat,
		"log":       c.Log,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(TopicSection, k), v, true))
	}
}

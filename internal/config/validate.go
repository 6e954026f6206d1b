package config

import (
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"pendant-go/errcode"
	"pendant-go/internal/sched"
	"pendant-go/types"
)

// Validate reports every problem in c at once. It never modifies c.
func Validate(c Config) error {
	var errs error
	bad := func(format string, args ...any) {
		errs = multierr.Append(errs, errcode.New(errcode.InvalidConfig, "config", fmt.Sprintf(format, args...)))
	}

	if c.Clock.Hz == 0 {
		bad("clock.hz must be positive")
	}
	if c.Scheduler.MaxMissed < 1 {
		bad("scheduler.max_missed must be at least 1")
	}

	prio := map[string]int{
		"estop":    c.Estop.Priority,
		"selector": c.Selector.Priority,
		"encoder":  c.Encoder.Priority,
		"display":  c.Display.Priority,
	}
	for name, p := range prio {
		if p < 1 || p > int(sched.MaxPriority) {
			bad("%s.priority %d outside 1..%d", name, p, sched.MaxPriority)
		}
		if name != "estop" && p >= c.Estop.Priority {
			bad("%s.priority %d must be below estop.priority %d", name, p, c.Estop.Priority)
		}
		if name != "display" && name != "estop" && p <= c.Display.Priority {
			bad("display.priority %d must be below %s.priority %d", c.Display.Priority, name, p)
		}
	}

	periods := map[string]time.Duration{
		"selector": c.Selector.Period,
		"encoder":  c.Encoder.Period,
		"display":  c.Display.Period,
	}
	for name, d := range periods {
		if d <= 0 {
			bad("%s.period must be positive", name)
			continue
		}
		if c.Clock.Hz != 0 && sched.Cycles(c.Clock.Hz, d) >= sched.MaxPeriod {
			bad("%s.period %s is too long for a %d Hz counter", name, d, c.Clock.Hz)
		}
	}
	if c.Display.Period <= c.Selector.Period {
		bad("display.period %s must be longer than selector.period %s", c.Display.Period, c.Selector.Period)
	}
	if c.Selector.StablePolls < 1 {
		bad("selector.stable_polls must be at least 1")
	}

	pins := map[int]string{}
	claim := func(pin int, what string) {
		if pin < 0 {
			bad("%s: negative pin %d", what, pin)
			return
		}
		if other, dup := pins[pin]; dup {
			bad("pin %d used by both %s and %s", pin, other, what)
			return
		}
		pins[pin] = what
	}
	claim(c.Estop.Pin, "estop")
	if len(c.Selector.Multiplier) == 0 {
		bad("selector.multiplier has no positions")
	}
	if len(c.Selector.Axis) == 0 {
		bad("selector.axis has no positions")
	}
	seenM := map[types.Multiplier]bool{}
	for _, p := range c.Selector.Multiplier {
		m, ok := ParseMultiplier(p.Value)
		if !ok {
			bad("selector.multiplier: unknown value %q", p.Value)
		} else if seenM[m] {
			bad("selector.multiplier: %s listed twice", m)
		}
		seenM[m] = true
		claim(p.Pin, "multiplier "+p.Value)
	}
	seenA := map[types.Axis]bool{}
	for _, p := range c.Selector.Axis {
		a, ok := ParseAxis(p.Value)
		if !ok {
			bad("selector.axis: unknown value %q", p.Value)
		} else if seenA[a] {
			bad("selector.axis: %s listed twice", a)
		}
		seenA[a] = true
		claim(p.Pin, "axis "+p.Value)
	}
	if c.Encoder.PinA != 0 || c.Encoder.PinB != 0 {
		claim(c.Encoder.PinA, "encoder a")
		claim(c.Encoder.PinB, "encoder b")
	}

	if n := c.HostLink.RingSize; n < 16 || n&(n-1) != 0 {
		bad("hostlink.ring_size %d must be a power of two >= 16", n)
	}
	switch c.HostLink.Transport {
	case "", "stdout", "uart", "file":
	default:
		bad("hostlink.transport %q unknown", c.HostLink.Transport)
	}
	if c.HostLink.Transport == "file" && c.HostLink.Device == "" {
		bad("hostlink.device required for the file transport")
	}
	if c.Display.Scale < 1 {
		bad("display.scale must be at least 1")
	}
	if c.Heartbeat.Interval < 0 {
		bad("heartbeat.interval must not be negative")
	}

	var lv slog.Level
	if err := lv.UnmarshalText([]byte(c.Log.Level)); err != nil {
		bad("log.level %q unknown", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		bad("log.format %q must be text or json", c.Log.Format)
	}
	return errs
}

// ParseMultiplier accepts x1, x10 or x100, lower or upper case.
func ParseMultiplier(s string) (types.Multiplier, bool) {
	switch s {
	case "x1", "X1":
		return types.MultiplierX1, true
	case "x10", "X10":
		return types.MultiplierX10, true
	case "x100", "X100":
		return types.MultiplierX100, true
	}
	return types.MultiplierNone, false
}

// ParseAxis accepts x, y, z or a, lower or upper case.
func ParseAxis(s string) (types.Axis, bool) {
	switch s {
	case "x", "X":
		return types.AxisX, true
	case "y", "Y":
		return types.AxisY, true
	case "z", "Z":
		return types.AxisZ, true
	case "a", "A":
		return types.AxisA, true
	}
	return types.AxisNone, false
}

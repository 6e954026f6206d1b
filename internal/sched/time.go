package sched

import (
	"sync/atomic"
	"time"

	"pendant-go/x/mathx"
)

// Instant is a point on the wrapping 32-bit cycle counter.
type Instant uint32

// Duration is a span of counter cycles.
type Duration uint32

// Wrap is the full counter period in cycles.
const Wrap uint64 = 1 << 32

// Comparisons are only meaningful for instants less than half a wrap apart.
func (i Instant) Before(j Instant) bool { return int32(i-j) < 0 }
func (i Instant) After(j Instant) bool  { return int32(i-j) > 0 }

func (i Instant) Add(d Duration) Instant { return i + Instant(d) }

// Since returns i - j; callers guarantee j is not after i.
func (i Instant) Since(j Instant) Duration { return Duration(i - j) }

// Clock is the monotonic time source behind the executor.
type Clock interface {
	Now() Instant
	Hz() uint32
}

// Cycles converts a wall duration to counter cycles at hz, rounding up so a
// positive duration is never zero cycles.
func Cycles(hz uint32, d time.Duration) Duration {
	if d <= 0 {
		return 0
	}
	ns := uint64(d)
	c := ns/1e9*uint64(hz) + mathx.CeilDiv(ns%1e9*uint64(hz), 1e9)
	if c >= Wrap {
		return Duration(Wrap - 1)
	}
	return Duration(c)
}

// ToTime converts counter cycles at hz to a wall duration.
func ToTime(hz uint32, d Duration) time.Duration {
	if hz == 0 {
		return 0
	}
	c := uint64(d)
	return time.Duration(c/uint64(hz)*1e9 + c%uint64(hz)*1e9/uint64(hz))
}

// HostClock derives the counter from the process monotonic clock.
type HostClock struct {
	start time.Time
	hz    uint32
}

func NewHostClock(hz uint32) *HostClock {
	if hz == 0 {
		hz = 1_000_000
	}
	return &HostClock{start: time.Now(), hz: hz}
}

func (c *HostClock) Hz() uint32 { return c.hz }

func (c *HostClock) Now() Instant {
	ns := uint64(time.Since(c.start))
	return Instant(ns/1e9*uint64(c.hz) + ns%1e9*uint64(c.hz)/1e9)
}

// ManualClock only moves when told to. Used by tests and replay.
type ManualClock struct {
	now atomic.Uint32
	hz  uint32
}

func NewManualClock(hz uint32, start Instant) *ManualClock {
	if hz == 0 {
		hz = 1_000_000
	}
	c := &ManualClock{hz: hz}
	c.now.Store(uint32(start))
	return c
}

func (c *ManualClock) Hz() uint32                  { return c.hz }
func (c *ManualClock) Now() Instant                { return Instant(c.now.Load()) }
func (c *ManualClock) Set(i Instant)               { c.now.Store(uint32(i)) }
func (c *ManualClock) Advance(d Duration)          { c.now.Add(uint32(d)) }
func (c *ManualClock) AdvanceTime(d time.Duration) { c.Advance(Cycles(c.hz, d)) }

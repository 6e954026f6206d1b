package bus

import (
	"sort"
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("hostlink", "state"))
	conn.Publish(conn.NewMessage(T("hostlink", "state"), "link_established", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "link_established" {
			t.Errorf("payload = %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedDeliveredOnSubscribe(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")
	conn.Publish(conn.NewMessage(T("config", "display"), "period=100ms", true))

	sub := conn.Subscribe(T("config", "display"))
	expectOneOf(t, sub, "period=100ms")
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestSingleLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sCfg := c.Subscribe(T("config", "+"))
	sAny := c.Subscribe(T("+", "+"))
	sFrame := c.Subscribe(T("+", "frame"))

	c.Publish(b.NewMessage(T("config", "estop"), "c1", false))
	expectOneOf(t, sCfg, "c1")
	expectOneOf(t, sAny, "c1")
	expectNoMessage(t, sFrame)

	c.Publish(b.NewMessage(T("pendant", "frame"), "f1", false))
	expectOneOf(t, sAny, "f1")
	expectOneOf(t, sFrame, "f1")
	expectNoMessage(t, sCfg)

	// '+' matches exactly one level
	c.Publish(b.NewMessage(T("config"), "c2", false))
	c.Publish(b.NewMessage(T("config", "selector", "axis"), "c3", false))
	expectNoMessage(t, sCfg)
	expectNoMessage(t, sAny)
}

func TestMultiLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAll := c.Subscribe(T("#"))
	sCfg := c.Subscribe(T("config", "#"))
	sExact := c.Subscribe(T("config"))

	c.Publish(b.NewMessage(T("config"), "p1", false))
	expectOneOf(t, sAll, "p1")
	expectOneOf(t, sCfg, "p1")
	expectOneOf(t, sExact, "p1")

	c.Publish(b.NewMessage(T("config", "selector", "axis"), "p2", false))
	expectOneOf(t, sAll, "p2")
	expectOneOf(t, sCfg, "p2")
	expectNoMessage(t, sExact)

	c.Publish(b.NewMessage(T("pendant", "stats"), "p3", false))
	expectOneOf(t, sAll, "p3")
	expectNoMessage(t, sCfg)
}

func TestWildcardRetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("config", "estop"), "r1", true))
	c.Publish(b.NewMessage(T("config", "display"), "r2", true))
	c.Publish(b.NewMessage(T("config", "selector", "axis"), "r3", true))
	c.Publish(b.NewMessage(T("pendant", "frame"), "r4", true))

	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("config", "#")), 3), []string{"r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("config", "+")), 2), []string{"r1", "r2"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("+", "frame")), 1), []string{"r4"})
}

func TestNilPayloadClearsRetained(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("hostlink", "state"), "open", true))
	c.Publish(b.NewMessage(T("pendant", "frame"), "frame", true))
	c.Publish(b.NewMessage(T("hostlink", "state"), nil, true))

	if _, ok := b.Retained(T("hostlink", "state")); ok {
		t.Fatal("cleared topic still retained")
	}
	got := drainPayloads(t, c.Subscribe(T("#")), 1)
	if got[0] != "frame" {
		t.Fatalf("expected only the frame after clear, got %v", got)
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("pendant", "frame"))

	for _, p := range []string{"f1", "f2", "f3"} {
		c.Publish(c.NewMessage(T("pendant", "frame"), p, false))
	}
	got := drainPayloads(t, s, 2)
	if got[0] != "f2" || got[1] != "f3" {
		t.Fatalf("expected newest two frames, got %v", got)
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}
}

func TestRetainedLookupAndUnsubscribe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	c.Publish(c.NewMessage(T("pendant", "estop"), true, true))

	m, ok := b.Retained(T("pendant", "estop"))
	if !ok || m.Payload != true {
		t.Fatalf("retained lookup failed: %v %v", m, ok)
	}
	if _, ok := b.Retained(T("pendant", "axis")); ok {
		t.Fatal("unexpected retained value")
	}

	s := c.Subscribe(T("pendant", "+"))
	expectRetained := <-s.Channel()
	if expectRetained.Payload != true {
		t.Fatal("retained not delivered on subscribe")
	}
	s.Unsubscribe()
	if _, open := <-s.Channel(); open {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// publishing after unsubscribe must not panic on the closed channel
	c.Publish(c.NewMessage(T("pendant", "estop"), false, true))
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %q, want %q (got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

func TestTopicString(t *testing.T) {
	if T("pendant", "frame").String() != "pendant/frame" {
		t.Fatal("topic string mismatch")
	}
}

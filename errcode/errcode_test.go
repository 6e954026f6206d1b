package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"elapsed":             Elapsed,
		"full":                Full,
		"halted":              Halted,
		"transient_bus":       TransientBus,
		"ambiguous_selection": AmbiguousSelection,
		"undeclared_resource": UndeclaredResource,
		"invalid_config":      InvalidConfig,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestWrapMatchesCode(t *testing.T) {
	cause := errors.New("nack")
	err := Wrap(TransientBus, "flush", cause)
	if !errors.Is(err, TransientBus) {
		t.Fatal("errors.Is did not match the wrapped code")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not reach the cause")
	}
	if Of(err) != TransientBus {
		t.Fatalf("Of = %q", Of(err))
	}
	if got := err.Error(); got != "flush: transient_bus: nack" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestOfUnwrapsForeignWrappers(t *testing.T) {
	err := fmt.Errorf("tick: %w", Elapsed)
	if Of(err) != Elapsed {
		t.Fatalf("Of = %q, want elapsed", Of(err))
	}
	if Of(nil) != OK {
		t.Fatal("Of(nil) should be ok")
	}
	if Of(errors.New("x")) != Error {
		t.Fatal("unknown errors map to the generic code")
	}
}

func TestTransient(t *testing.T) {
	if !Transient(Wrap(TransientBus, "flush", nil)) {
		t.Fatal("bus failure should be transient")
	}
	if Transient(Hardware) {
		t.Fatal("hardware failure is not transient")
	}
}

package types

import "testing"

func TestMultiplierWeightAndString(t *testing.T) {
	cases := []struct {
		m      Multiplier
		weight int
		s      string
		valid  bool
	}{
		{MultiplierNone, 0, "Off", false},
		{MultiplierX1, 1, "X1", true},
		{MultiplierX10, 10, "X10", true},
		{MultiplierX100, 100, "X100", true},
		{Multiplier(7), 7, "Off", false},
	}
	for _, c := range cases {
		if c.m.Weight() != c.weight || c.m.String() != c.s || c.m.Valid() != c.valid {
			t.Fatalf("%d: got weight=%d s=%q valid=%v", c.m, c.m.Weight(), c.m.String(), c.m.Valid())
		}
	}
}

func TestAxisIndex(t *testing.T) {
	if AxisX.Index() != 1 || AxisA.Index() != 4 {
		t.Fatal("axis index mapping incorrect")
	}
	if AxisNone.Valid() || !AxisZ.Valid() {
		t.Fatal("axis validity incorrect")
	}
	if AxisNone.String() != "Off" || AxisY.String() != "Y" {
		t.Fatal("axis strings incorrect")
	}
}

func TestEdgeString(t *testing.T) {
	if EdgeRising.String() != "rising" ||
		EdgeFalling.String() != "falling" ||
		EdgeBoth.String() != "both" ||
		EdgeNone.String() != "none" {
		t.Fatal("Edge.String mapping incorrect")
	}
}

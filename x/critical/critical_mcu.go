//go:build tinygo

package critical

import "runtime/interrupt"

// State is the saved interrupt state returned by Enter.
type State = interrupt.State

// Enter disables interrupts on the (single) core.
func Enter() State { return interrupt.Disable() }

// Exit restores the interrupt state saved by Enter.
func Exit(s State) { interrupt.Restore(s) }

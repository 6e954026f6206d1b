//go:build !tinygo

package critical

import "sync"

// On the host every goroutine that plays an interrupt shares one lock. Sections
// are a handful of instructions long and never nest.
var mu sync.Mutex

// State is the saved interrupt state returned by Enter.
type State struct{}

// Enter masks interrupts (host: takes the global section lock).
func Enter() State {
	mu.Lock()
	return State{}
}

// Exit restores the state saved by Enter.
func Exit(State) { mu.Unlock() }

// Package reconcile implements the sync protocol between the local mirror
// and the authoritative store. Per owner the protocol is a three-state
// machine: Synced -> Stale (server counters moved past the last-synced
// counters) -> Syncing (pull in progress) -> Synced. A failed pull always
// lands back in Stale so the next check retries; it never silently
// resolves to Synced.
package reconcile

import "fmt"

// State is the per-owner reconciliation state.
type State string

const (
	// Synced: the mirror reflects every counter the server has reported.
	Synced State = "synced"
	// Stale: the server counters are ahead; a pull is needed.
	Stale State = "stale"
	// Syncing: a pull is in progress.
	Syncing State = "syncing"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == Synced || s == Stale || s == Syncing
}

// legal transitions; anything else is a protocol bug.
var transitions = map[State][]State{
	Synced:  {Stale},
	Stale:   {Syncing, Stale},
	Syncing: {Synced, Stale},
}

// Transition validates the move from s to next.
func (s State) Transition(next State) (State, error) {
	for _, t := range transitions[s] {
		if t == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("illegal sync transition %s -> %s", s, next)
}

package reconcile

import "testing"

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		allowed bool
	}{
		{Synced, Stale, true},
		{Stale, Syncing, true},
		{Stale, Stale, true},
		{Syncing, Synced, true},
		{Syncing, Stale, true},
		// A failed or skipped pull must never land in Synced directly.
		{Synced, Syncing, false},
		{Stale, Synced, false},
		{Synced, Synced, false},
		{Syncing, Syncing, false},
	}

	for _, tt := range tests {
		got, err := tt.from.Transition(tt.to)
		if tt.allowed {
			if err != nil {
				t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
			}
			if got != tt.to {
				t.Errorf("%s -> %s: got %s", tt.from, tt.to, got)
			}
		} else {
			if err == nil {
				t.Errorf("%s -> %s: expected error", tt.from, tt.to)
			}
			if got != tt.from {
				t.Errorf("%s -> %s: state moved to %s on illegal transition", tt.from, tt.to, got)
			}
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{Synced, Stale, Syncing} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if State("resolved").Valid() {
		t.Error("unknown state should be invalid")
	}
}

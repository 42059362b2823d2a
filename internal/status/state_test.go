package status

import (
	"testing"

	"github.com/fieldreport/chatsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		walk []State
	}{
		{[]State{Syncing, Idle}},
		{[]State{Syncing, Backoff, Syncing, Idle}},
		{[]State{Syncing, Backoff, Stopped, Idle}},
		{[]State{Stopped, Idle, Syncing}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, to := range tt.walk {
			if err := m.Transition(to); err != nil {
				t.Errorf("Transition(%s) from %s error = %v", to, m.Current(), err)
				break
			}
		}
	}
}

// TestSyncingIsNonReentrant verifies the invariant the scheduler relies on:
// a second trigger while a cycle is in flight must fail the transition
// instead of starting an overlapping call.
func TestSyncingIsNonReentrant(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Syncing); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Syncing); err == nil {
		t.Error("Transition(SYNCING -> SYNCING) should fail")
	}
}

func TestCannotStopMidCycle(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Syncing); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Stopped); err == nil {
		t.Error("Transition(SYNCING -> STOPPED) should fail; a cycle in flight completes first")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Syncing); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "sync.status_changed" {
		t.Errorf("event kind = %q, want sync.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Syncing {
		t.Errorf("change = %v -> %v, want IDLE -> SYNCING", change.From, change.To)
	}
}

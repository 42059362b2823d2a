package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fieldreport/chatsync/internal/bus"
)

// State represents a sync-loop runtime state.
type State string

const (
	// Idle means no cycle is in flight and the next one is timer-scheduled.
	Idle State = "IDLE"
	// Syncing means exactly one cycle is in flight.
	Syncing State = "SYNCING"
	// Backoff means the last cycle failed and the next delay is stretched.
	Backoff State = "BACKOFF"
	// Stopped means the loop has been shut down.
	Stopped State = "STOPPED"
)

// validTransitions defines allowed state transitions. Entering Syncing is
// only legal from Idle or Backoff, which makes overlapping cycles
// unrepresentable: a second trigger fails the transition and is dropped.
var validTransitions = map[State][]State{
	Idle:    {Syncing, Stopped},
	Syncing: {Idle, Backoff},
	Backoff: {Syncing, Stopped},
	Stopped: {Idle},
}

// Machine tracks and enforces sync-loop state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "sync.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

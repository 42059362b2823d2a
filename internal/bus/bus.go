package bus

import (
	"strings"
	"sync"
)

// Bus is the in-process publish/subscribe channel between the sync engine
// and the host application. The coordinator, pipeline and status machine
// publish on it; the host UI subscribes to the event namespaces it renders,
// e.g. "message." for a conversation view or "sync." for a status bar.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
}

// subscriber couples a namespace prefix with its delivery channel.
type subscriber struct {
	namespace string
	ch        chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[int]*subscriber),
	}
}

// Publish fans the event out to every subscriber whose namespace prefixes
// evt.Kind. Delivery is non-blocking: a subscriber that has fallen behind
// loses the event rather than stalling a sync cycle, since the store always
// holds the current state and a dropped notification only delays a repaint.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe registers interest in a namespace prefix and returns the
// delivery channel plus an unsubscribe function. bufSize bounds how far a
// consumer may lag before Publish starts dropping its events.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = &subscriber{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

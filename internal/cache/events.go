package cache

import (
	"sync"
	"time"

	"github.com/CardaLabs/sdk/pkg/logger"
)

// EventType classifies cache mutations and lookups.
type EventType string

const (
	EventHit     EventType = "hit"
	EventMiss    EventType = "miss"
	EventSet     EventType = "set"
	EventDelete  EventType = "delete"
	EventClear   EventType = "clear"
	EventExpired EventType = "expired"
	EventEvicted EventType = "evicted"
)

// Event describes one cache occurrence.
type Event struct {
	Type      EventType `json:"type"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Listener receives cache events. Listeners must not block; panics are
// recovered and logged so a faulty subscriber cannot break cache operation.
type Listener func(Event)

type listenerEntry struct {
	id int64
	fn Listener
}

// notifier fans events out to subscribers.
type notifier struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    int64
	log       *logger.Logger
}

func newNotifier(log *logger.Logger) *notifier {
	return &notifier{log: log}
}

// subscribe registers a listener and returns an unsubscribe function.
func (n *notifier) subscribe(fn Listener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners = append(n.listeners, listenerEntry{id: id, fn: fn})
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, l := range n.listeners {
			if l.id == id {
				n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit delivers the event to every listener. Panics are swallowed and logged;
// this hides listener bugs but keeps the cache operational.
func (n *notifier) emit(eventType EventType, key string) {
	n.mu.RLock()
	listeners := make([]listenerEntry, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	event := Event{Type: eventType, Key: key, Timestamp: time.Now().UTC()}
	for _, l := range listeners {
		n.deliver(l.fn, event)
	}
}

func (n *notifier) deliver(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil && n.log != nil {
			n.log.WithField("event", string(event.Type)).
				Warnf("cache listener panicked: %v", r)
		}
	}()
	fn(event)
}

package sdk

import (
	"sync"
	"time"

	"github.com/CardaLabs/sdk/internal/domain"
)

// EventType identifies a request lifecycle event emitted by the client.
type EventType string

const (
	EventRequestStarted   EventType = "request.started"
	EventRequestCompleted EventType = "request.completed"
	EventProviderFailed   EventType = "provider.failed"
)

// Event describes one lifecycle observation. Events complement cache events
// (see Subscribe); together they cover the full read path.
type Event struct {
	Type      EventType         `json:"type"`
	Kind      domain.RecordKind `json:"kind"`
	ID        string            `json:"id"`
	RequestID string            `json:"request_id"`
	// Provider is set on provider.failed events.
	Provider string `json:"provider,omitempty"`
	// Sources lists the contributing providers on request.completed events.
	Sources []string      `json:"sources,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	Error   string        `json:"error,omitempty"`
	Time    time.Time     `json:"time"`
}

const eventHistorySize = 128

// eventBus fans lifecycle events out to subscribers and keeps a bounded
// history ring for inspection.
type eventBus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(Event)
	history   []Event
	pos       int
}

func newEventBus() *eventBus {
	return &eventBus{
		listeners: make(map[int]func(Event)),
		history:   make([]Event, 0, eventHistorySize),
	}
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *eventBus) emit(e Event) {
	e.Time = time.Now().UTC()

	b.mu.Lock()
	if len(b.history) < eventHistorySize {
		b.history = append(b.history, e)
	} else {
		b.history[b.pos] = e
		b.pos = (b.pos + 1) % eventHistorySize
	}
	fns := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	// Listeners run outside the lock; a panicking listener must not take
	// the caller down.
	for _, fn := range fns {
		func() {
			defer func() { recover() }()
			fn(e)
		}()
	}
}

// recent returns the retained history, oldest first.
func (b *eventBus) recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.history))
	out = append(out, b.history[b.pos:]...)
	out = append(out, b.history[:b.pos]...)
	return out
}

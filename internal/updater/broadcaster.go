package updater

import (
	"log"
	"sync"
)

// Observer receives broadcast events.
type Observer func(Event)

// Broadcaster fans out events to every registered observer. Delivery to one
// observer is isolated from the others: a panicking observer is logged and
// skipped, never aborting the fan-out. Broadcasts are serialized, so all
// observers see the same total order of events.
type Broadcaster struct {
	mu        sync.Mutex
	next      int
	observers map[int]Observer

	sendMu sync.Mutex
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{observers: make(map[int]Observer)}
}

// Subscribe registers an observer and returns a token for Unsubscribe.
func (b *Broadcaster) Subscribe(fn Observer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.observers[b.next] = fn
	return b.next
}

// Unsubscribe removes the observer registered under token.
func (b *Broadcaster) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, token)
}

// Broadcast delivers evt to every observer registered at call time. It does
// not return until all deliveries have been attempted, which keeps broadcasts
// for one orchestrator strictly ordered.
func (b *Broadcaster) Broadcast(evt Event) {
	b.mu.Lock()
	observers := make([]Observer, 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	for _, fn := range observers {
		deliver(fn, evt)
	}
}

func deliver(fn Observer, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[updater] observer panic on %s event: %v", evt.Kind, r)
		}
	}()
	fn(evt)
}

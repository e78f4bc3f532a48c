package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/research"
)

// eventBroker fans a running session's progress events out to its SSE
// subscribers. Publishing never blocks the research worker: a subscriber that
// stops draining its channel misses events instead of stalling the session.
type eventBroker struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[chan research.Event]struct{}
	closed map[uuid.UUID]struct{}
}

func newEventBroker() *eventBroker {
	return &eventBroker{
		subs:   make(map[uuid.UUID]map[chan research.Event]struct{}),
		closed: make(map[uuid.UUID]struct{}),
	}
}

// Subscribe registers a listener for one session. The returned cancel func
// must be called when the listener goes away. Subscribing to a session whose
// worker already finished yields a closed channel.
func (b *eventBroker) Subscribe(sessionID uuid.UUID) (<-chan research.Event, func()) {
	ch := make(chan research.Event, 16)

	b.mu.Lock()
	if _, done := b.closed[sessionID]; done {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan research.Event]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber of the session.
func (b *eventBroker) Publish(sessionID uuid.UUID, event research.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[sessionID] {
		select {
		case ch <- event:
		default: // Slow subscriber, drop
		}
	}
}

// Close drops all subscribers of a finished session and closes their
// channels so streaming handlers unblock.
func (b *eventBroker) Close(sessionID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[sessionID] {
		close(ch)
	}
	delete(b.subs, sessionID)
	b.closed[sessionID] = struct{}{}
}

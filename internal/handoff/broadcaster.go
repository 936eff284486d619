package handoff

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

// Broadcaster fans accepted-case handoffs out to case-detail subscribers.
type Broadcaster struct {
	subscribers map[uint64]chan models.Handoff
	nextID      atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.Handoff),
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan models.Handoff) {
	id := b.nextID.Add(1)
	ch := make(chan models.Handoff, 32)

	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[id] = ch
	}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish returns how many subscribers received h.
func (b *Broadcaster) Publish(h models.Handoff) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- h:
			delivered++
		default:
			// Skip slow subscribers
		}
	}
	return delivered
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels; later subscriptions get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

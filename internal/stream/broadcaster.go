// Package stream fans newly cached events out to live subscribers.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-quake-search/internal/models"
)

const DefaultBuffer = 100

// Filter narrows what a subscriber receives. The zero value passes
// everything.
type Filter struct {
	MinMagnitude float64
}

func (f Filter) match(e *models.Event) bool {
	return f.MinMagnitude <= 0 || e.Mag() >= f.MinMagnitude
}

type subscriber struct {
	ch     chan *models.Event
	filter Filter
}

type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	buffer      int
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
		buffer:      buffer,
	}
}

// Subscribe registers a subscriber. After Close the returned channel is
// already closed.
func (b *Broadcaster) Subscribe(filter Filter) (uint64, <-chan *models.Event) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast delivers e to every matching subscriber without blocking and
// returns how many received it.
func (b *Broadcaster) Broadcast(e *models.Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subscribers {
		if !sub.filter.match(e) {
			continue
		}
		select {
		case sub.ch <- e:
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

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

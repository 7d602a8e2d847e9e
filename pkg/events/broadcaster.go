// Package events fans slot state updates out to subscribers.
package events

import "sync"

// Buffer is the per-subscriber channel capacity.
const Buffer = 16

// Broadcaster delivers published values to every subscriber.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[chan T]struct{}
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, Buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Publish sends v to all subscribers. Non-blocking: a subscriber whose
// buffer is full misses the value.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- v:
		default:
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

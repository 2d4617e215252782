// Package broadcast provides a typed observer list. Every Subscribe returns a
// disposer; the subscriber is detached when the disposer runs, and running it
// more than once is harmless.
package broadcast

import (
	"sync"
)

// Unsubscribe detaches a subscriber
type Unsubscribe func()

// Bus delivers published values to all current subscribers, in the order
// they subscribed. Delivery is synchronous on the publishing goroutine.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// New creates an empty bus
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns its disposer.
func (b *Bus[T]) Subscribe(fn func(T)) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every subscriber registered at the time of the call.
// Subscribers may unsubscribe from inside their callback.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of attached subscribers
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

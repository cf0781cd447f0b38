// Package bus carries timing pulses and domain commands between the
// transport, the sequencers and whatever UI is listening. Dispatch is
// synchronous on the publishing goroutine; for the TimingBus that is the
// transport goroutine, which makes it the single timing thread.
package bus

import (
	"fmt"
	"sort"
	"sync"

	"go-beatgen/debug"
)

// Handler receives events published on a Bus
type Handler[T any] func(T)

// Bus is a many-to-many publish/subscribe channel for one event type
type Bus[T any] struct {
	name string

	mu       sync.RWMutex
	handlers map[int]Handler[T]
	nextID   int
}

// Subscription is returned by Subscribe; Unsubscribe is idempotent
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the handler from its bus
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// New creates an empty bus. The name only shows up in logs.
func New[T any](name string) *Bus[T] {
	return &Bus[T]{
		name:     name,
		handlers: make(map[int]Handler[T]),
	}
}

// Subscribe registers h; handlers run in subscription order
func (b *Bus[T]) Subscribe(h Handler[T]) *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}}
}

// SubscribeChan forwards events to a buffered channel without ever blocking
// the publisher. Events are dropped when the channel is full.
func (b *Bus[T]) SubscribeChan(buffer int) (<-chan T, *Subscription) {
	ch := make(chan T, buffer)
	sub := b.Subscribe(func(v T) {
		TrySend(ch, v)
	})
	return ch, sub
}

// Len returns the number of live subscribers
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Publish delivers v to every subscriber on the calling goroutine. A panic in
// one handler is logged and does not stop delivery to the others.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler[T], 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, v)
	}
}

func (b *Bus[T]) deliver(h Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("bus", "%s: handler panic: %v", b.name, r)
		}
	}()
	h(v)
}

func (b *Bus[T]) String() string {
	return fmt.Sprintf("bus(%s, %d subscribers)", b.name, b.Len())
}

// TrySend sends v to c if it is not full. It never blocks. Returns true if the
// value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

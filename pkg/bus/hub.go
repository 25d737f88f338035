// Package bus is a typed, in-process observer hub. Publishers do not know
// their subscribers; a panicking subscriber does not affect the others.
package bus

import (
	"context"
	"sort"
	"sync"
)

// Handler receives published events.
type Handler[E any] func(ctx context.Context, e E)

// Hub fans events out to subscribers in subscription order.
type Hub[E any] struct {
	mu      sync.RWMutex
	next    int
	subs    map[int]Handler[E]
	onPanic func(recovered any)
}

// Option configures a Hub.
type Option[E any] func(*Hub[E])

// WithPanicHandler is called with the recovered value when a subscriber
// panics.
func WithPanicHandler[E any](fn func(recovered any)) Option[E] {
	return func(h *Hub[E]) {
		h.onPanic = fn
	}
}

// NewHub returns an empty hub.
func NewHub[E any](opts ...Option[E]) *Hub[E] {
	h := &Hub[E]{subs: make(map[int]Handler[E])}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers fn and returns a function removing it.
func (h *Hub[E]) Subscribe(fn Handler[E]) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers e to every current subscriber synchronously.
func (h *Hub[E]) Publish(ctx context.Context, e E) {
	for _, fn := range h.snapshot() {
		h.deliver(ctx, fn, e)
	}
}

// Len returns the number of subscribers.
func (h *Hub[E]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub[E]) snapshot() []Handler[E] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Handler[E], len(ids))
	for i, id := range ids {
		out[i] = h.subs[id]
	}
	return out
}

func (h *Hub[E]) deliver(ctx context.Context, fn Handler[E], e E) {
	defer func() {
		if r := recover(); r != nil && h.onPanic != nil {
			h.onPanic(r)
		}
	}()
	fn(ctx, e)
}

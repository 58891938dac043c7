// Package events provides a small in-process publish/subscribe channel.
//
// All state mutation in the tracker happens as a reaction to discrete
// events (block arrivals, store changes, session changes). The bus is the
// single mechanism those reactions are delivered through: components own a
// Bus, publish into it, and hand out subscriptions with an explicit
// unsubscribe.
//
// Publish never blocks. When a subscriber's buffer is full the oldest
// queued value is dropped in favor of the new one, so slow consumers only
// ever lag, they never stall a publisher, and they always see the most
// recent value eventually.
package events

import "sync"

// Bus fans values out to any number of subscribers.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber with the given buffer size and
// returns its channel together with an unsubscribe function. After
// unsubscribe returns, no further values are delivered and the channel is
// closed. Unsubscribe is safe to call more than once.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish delivers v to every current subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		for {
			select {
			case ch <- v:
			default:
				// Buffer full: evict the oldest value and retry once so
				// the subscriber keeps the freshest data.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

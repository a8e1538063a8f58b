// Package broadcast fans a stream of values out to any number of
// subscribers. Slow subscribers lose old values rather than blocking the
// publisher.
package broadcast

import "sync"

type Broadcaster[T any] struct {
	lock sync.Mutex
	subs map[chan T]struct{}
	last T
	set  bool
}

func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subs: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel receiving every published value, starting with
// the latest one if any. The returned func unsubscribes and closes the
// channel.
func (b *Broadcaster[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	b.lock.Lock()
	b.subs[ch] = struct{}{}
	if b.set {
		ch <- b.last
	}
	b.lock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.lock.Lock()
			delete(b.subs, ch)
			b.lock.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster[T]) Publish(v T) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.last, b.set = v, true
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop the oldest value to make room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Last returns the most recent value and whether anything was published yet.
func (b *Broadcaster[T]) Last() (T, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.last, b.set
}

func (b *Broadcaster[T]) Subscribers() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs)
}

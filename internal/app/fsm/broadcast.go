package fsm

import (
	"context"
	"sync"
)

// Broadcaster fans signals out to subscribers.
// Every subscriber receives every signal published after it subscribed, in order.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subs: make(map[*Subscription[T]]struct{}),
	}
}

// Subscription receives signals from a Broadcaster.
type Subscription[T any] struct {
	b    *Broadcaster[T]
	box  *Mailbox[T]
	ch   chan T
	done chan struct{}
	once sync.Once
}

// Subscribe registers a new subscriber.
// On a closed broadcaster the returned subscription's channel is already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		b:    b,
		box:  NewMailbox[T](),
		ch:   make(chan T),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.once.Do(func() {
			s.box.Close()
			close(s.done)
		})
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// Publish delivers v to every current subscriber without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		s.box.Post(v)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription. Signals already published are still delivered.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription[T], 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription[T]]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.box.Close()
	}
}

// C returns the receive channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes and drops any undelivered signals.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()

		s.box.Close()
		close(s.done)
	})
}

func (s *Subscription[T]) pump() {
	defer close(s.ch)

	for {
		v, ok := s.box.Next(context.Background())
		if !ok {
			return
		}
		select {
		case s.ch <- v:
		case <-s.done:
			return
		}
	}
}

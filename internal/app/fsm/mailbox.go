// Package fsm provides the serial event queue and signal fan-out shared by the
// playback state machines.
package fsm

import (
	"context"
	"sync"
)

// Mailbox is an unbounded FIFO consumed by a single goroutine.
// Post never blocks, so a handler may post to its own mailbox.
type Mailbox[E any] struct {
	mu     sync.Mutex
	queue  []E
	notify chan struct{}
	closed bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox[E any]() *Mailbox[E] {
	return &Mailbox[E]{
		notify: make(chan struct{}, 1),
	}
}

// Post appends an event. It returns false if the mailbox is closed.
func (m *Mailbox[E]) Post(e E) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// TryNext pops the oldest event without waiting.
func (m *Mailbox[E]) TryNext() (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero E
	if len(m.queue) == 0 {
		return zero, false
	}
	e := m.queue[0]
	m.queue[0] = zero
	m.queue = m.queue[1:]
	return e, true
}

// Next waits for the oldest event.
// It returns false when the context is done or the mailbox is closed and drained.
func (m *Mailbox[E]) Next(ctx context.Context) (E, bool) {
	for {
		if e, ok := m.TryNext(); ok {
			return e, true
		}

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			var zero E
			return zero, false
		}

		select {
		case <-m.notify:
		case <-ctx.Done():
			var zero E
			return zero, false
		}
	}
}

// Run handles events one at a time, in arrival order, until Next returns false.
func (m *Mailbox[E]) Run(ctx context.Context, handle func(E)) {
	for {
		e, ok := m.Next(ctx)
		if !ok {
			return
		}
		handle(e)
	}
}

// Len returns the number of pending events.
func (m *Mailbox[E]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close rejects further posts. Pending events are still delivered.
func (m *Mailbox[E]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

package session

import (
	"sync"

	"github.com/YangLiliang/minivenue/internal/domain"
)

// Outbox is a session's outbound report queue. Producers (the session's
// own steps, routed counterparty fills, the broadcast feed) push; the
// session's transport drains and writes one element at a time, so delivery
// on the stream is strictly FIFO. Once closed an Outbox accepts nothing,
// which gives the registry weak-reference semantics: pushes to a finished
// session fail instead of dangling.
type Outbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{}
}

func NewOutbox[T any]() *Outbox[T] {
	return &Outbox[T]{notify: make(chan struct{}, 1)}
}

// Push enqueues one element. Returns ErrSessionGone if the outbox is
// closed.
func (o *Outbox[T]) Push(v T) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return domain.ErrSessionGone
	}
	o.queue = append(o.queue, v)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop dequeues the oldest element, if any.
func (o *Outbox[T]) Pop() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		var zero T
		return zero, false
	}
	v := o.queue[0]
	o.queue = o.queue[1:]
	return v, true
}

// Close rejects all future pushes. Elements already queued remain
// poppable so the transport can flush them.
func (o *Outbox[T]) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Drained reports whether the outbox is closed with nothing left queued.
func (o *Outbox[T]) Drained() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed && len(o.queue) == 0
}

// Notify returns the channel signalled on every push and on close. The
// signal is level-triggered with capacity one; after waking, drain with
// Pop until empty.
func (o *Outbox[T]) Notify() <-chan struct{} {
	return o.notify
}

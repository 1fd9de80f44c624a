// Package queue holds pending poll triggers. A trigger that finds the queue
// full is coalesced into the one already waiting.
package queue

import (
	"context"
	"sync"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

const defaultCapacity = 1

// Trigger is the payload flowing through the queue.
type Trigger = model.Trigger

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a trigger. It returns false when the trigger was
	// coalesced into one already waiting, or the queue is closed.
	Enqueue(ctx context.Context, t Trigger) bool

	// Dequeue returns a channel that receives triggers until the queue is
	// closed or ctx is done.
	Dequeue(ctx context.Context) <-chan Trigger

	Len(ctx context.Context) int

	// Close stops new triggers. Waiting triggers are dropped.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	triggers chan Trigger
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue. Capacity defaults to 1.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.triggers = make(chan Trigger, q.capacity)
	metrics.UpdateTriggerBacklog(0)
	return q
}

// Enqueue adds t unless the queue is full.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Trigger) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	select {
	case q.triggers <- t:
		metrics.RecordTrigger(string(t.Reason))
		metrics.UpdateTriggerBacklog(len(q.triggers))
		return true
	default:
		metrics.RecordTriggerCoalesced()
		return false
	}
}

// Dequeue returns a channel of triggers.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Trigger {
	out := make(chan Trigger)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-q.triggers:
				if !ok {
					return
				}
				metrics.UpdateTriggerBacklog(len(q.triggers))
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of waiting triggers.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.triggers)
}

// Close shuts the queue down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.triggers)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Package worker runs the single poll worker that drains the trigger queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

// Trigger is what the worker reads off the queue.
type Trigger = model.Trigger

// Handler performs one poll for a trigger.
type Handler interface {
	Handle(ctx context.Context, t Trigger) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Trigger) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t Trigger) error { return f(ctx, t) }

// Queue defines how the worker receives triggers.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Trigger
}

// Worker processes triggers one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the trigger in hand, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Stop the dequeue goroutine as soon as the loop exits.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	triggers := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			w.process(ctx, t)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, t Trigger) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	err := w.handler.Handle(ctx, t)
	if err != nil {
		w.logger.Warn(ctx, "poll failed",
			logger.String("reason", string(t.Reason)),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return
	}
	w.logger.Debug(ctx, "poll done",
		logger.String("reason", string(t.Reason)),
		logger.Duration("elapsed", time.Since(start)),
	)
}

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// MemoryBus is an in-process bus on a watermill go channel.
type MemoryBus struct {
	pubsub *gochannel.GoChannel
	log    logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(log logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewWatermillLogger(log)),
		log:    log,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, n model.Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	payload, err := encode(n)
	if err != nil {
		return err
	}
	topics := topicsFor(n)
	for _, t := range topics {
		msg := message.NewMessage(n.ID, payload)
		msg.SetContext(ctx)
		msg.Metadata.Set("kind", string(n.Kind))
		if err := b.pubsub.Publish(t, msg); err != nil {
			return fmt.Errorf("publish %s: %w", t, err)
		}
	}
	recordOut(topics)
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan model.Notification, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan model.Notification, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			n, err := decode(msg.Payload)
			msg.Ack()
			if err != nil {
				b.log.Warn(ctx, "dropping bad notification", logger.String("topic", topic), logger.Error(err))
				continue
			}
			metrics.RecordNotification("in", topic)
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

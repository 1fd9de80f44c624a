package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// NATSBus shares notifications between processes through a NATS server.
// Topics map one to one onto subjects.
type NATSBus struct {
	nc  *nats.Conn
	log logger.Logger
}

// NewNATSBus connects to url.
func NewNATSBus(url string, log logger.Logger) (*NATSBus, error) {
	if log == nil {
		log = logger.Nop()
	}
	nc, err := nats.Connect(url,
		nats.Name("standings"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBus{nc: nc, log: log}, nil
}

func (b *NATSBus) Publish(_ context.Context, n model.Notification) error {
	if b.nc.IsClosed() {
		return ErrClosed
	}
	payload, err := encode(n)
	if err != nil {
		return err
	}
	topics := topicsFor(n)
	for _, t := range topics {
		msg := nats.NewMsg(t)
		msg.Data = payload
		msg.Header.Set(nats.MsgIdHdr, n.ID)
		if err := b.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", t, err)
		}
	}
	recordOut(topics)
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, topic string) (<-chan model.Notification, error) {
	if b.nc.IsClosed() {
		return nil, ErrClosed
	}
	in := make(chan *nats.Msg, 64)
	sub, err := b.nc.ChanSubscribe(topic, in)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan model.Notification, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-in:
				n, err := decode(m.Data)
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
		}
	}()
	return out, nil
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	if b.nc.IsClosed() {
		return nil
	}
	return b.nc.Drain()
}

// Package bus carries score mutation notifications between the API and the
// display poller.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("bus closed")

// Bus is a publish/subscribe hook with named topics.
type Bus interface {
	// Publish sends n on its own topic and on model.TopicChanged.
	Publish(ctx context.Context, n model.Notification) error
	// Subscribe delivers notifications on topic until ctx is done. The
	// channel is closed when the subscription ends.
	Subscribe(ctx context.Context, topic string) (<-chan model.Notification, error)
	Close() error
}

func topicsFor(n model.Notification) []string {
	t := n.Kind.Topic()
	if t == model.TopicChanged {
		return []string{t}
	}
	return []string{t, model.TopicChanged}
}

func encode(n model.Notification) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return b, nil
}

func decode(b []byte) (model.Notification, error) {
	var n model.Notification
	if err := json.Unmarshal(b, &n); err != nil {
		return model.Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}

func recordOut(topics []string) {
	for _, t := range topics {
		metrics.RecordNotification("out", t)
	}
}

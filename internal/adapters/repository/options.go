package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	newID func() string
	now   func() time.Time
}

func defaultOptions() options {
	return options{
		newID: func() string { return uuid.NewString() },
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIDGenerator replaces UUID generation, mostly useful in tests.
func WithIDGenerator(f func() string) Option {
	return func(o *options) {
		if f != nil {
			o.newID = f
		}
	}
}

// WithNow replaces the creation timestamp source.
func WithNow(f func() time.Time) Option {
	return func(o *options) {
		if f != nil {
			o.now = f
		}
	}
}

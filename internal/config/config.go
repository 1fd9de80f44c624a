// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are carried as integer milliseconds so env and YAML stay flat.
// - Provide New(ctx) to build a Config with defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRemote   = "remote"
)

// Bus backends.
const (
	BusMemory = "memory"
	BusNATS   = "nats"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// PublicURL is encoded into /qr.png so phones can open the board.
	PublicURL string `koanf:"public_url"`

	// TopN is the size of the top tier.
	TopN int `koanf:"top_n"`

	PollIntervalMS int `koanf:"poll_interval_ms"`
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`
	TransitionMS   int `koanf:"transition_ms"`
	ScoreTweenMS   int `koanf:"score_tween_ms"`
	BurstDelayMS   int `koanf:"burst_delay_ms"`

	// ViewportWidth and ViewportHeight size the virtual display.
	ViewportWidth  int `koanf:"viewport_width"`
	ViewportHeight int `koanf:"viewport_height"`

	// TriggerQueueSize bounds pending poll triggers; extra triggers coalesce.
	TriggerQueueSize int `koanf:"trigger_queue_size"`

	// MutationPollRate caps mutation-driven polls per second.
	MutationPollRate  float64 `koanf:"mutation_poll_rate"`
	MutationPollBurst int     `koanf:"mutation_poll_burst"`

	// DedupeSize sets the size of the notification id cache.
	DedupeSize int `koanf:"dedupe_size"`

	StoreBackend string `koanf:"store_backend"`
	SQLitePath   string `koanf:"sqlite_path"`
	PostgresDSN  string `koanf:"postgres_dsn"`
	RemoteURL    string `koanf:"remote_url"`

	BusBackend string `koanf:"bus_backend"`
	NATSURL    string `koanf:"nats_url"`

	// MaxNameLength caps contestant names accepted by the API.
	MaxNameLength int `koanf:"max_name_length"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		TopN:              3,
		PollIntervalMS:    3000,
		FetchTimeoutMS:    2000,
		TransitionMS:      800,
		ScoreTweenMS:      1500,
		BurstDelayMS:      200,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		TriggerQueueSize:  1,
		MutationPollRate:  4,
		MutationPollBurst: 2,
		DedupeSize:        4096,
		StoreBackend:      StoreMemory,
		SQLitePath:        "standings.db",
		BusBackend:        BusMemory,
		NATSURL:           "nats://127.0.0.1:4222",
		MaxNameLength:     64,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.TopN < 1:
		return invalid("top_n must be at least 1")
	case c.PollIntervalMS <= 0:
		return invalid("poll_interval_ms must be positive")
	case c.FetchTimeoutMS <= 0:
		return invalid("fetch_timeout_ms must be positive")
	case c.TransitionMS < 0, c.ScoreTweenMS < 0, c.BurstDelayMS < 0:
		return invalid("animation durations must not be negative")
	case c.ViewportWidth <= 0 || c.ViewportHeight <= 0:
		return invalid("viewport must have a positive size")
	case c.TriggerQueueSize < 1:
		return invalid("trigger_queue_size must be at least 1")
	case c.MutationPollRate <= 0 || c.MutationPollBurst < 1:
		return invalid("mutation poll rate and burst must be positive")
	case c.MaxNameLength < 1:
		return invalid("max_name_length must be at least 1")
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite_path is required for the sqlite store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return invalid("postgres_dsn is required for the postgres store")
		}
	case StoreRemote:
		if _, err := url.ParseRequestURI(c.RemoteURL); err != nil {
			return invalid("remote_url must be an absolute url")
		}
	default:
		return invalid("unknown store_backend " + c.StoreBackend)
	}

	switch c.BusBackend {
	case BusMemory:
	case BusNATS:
		if c.NATSURL == "" {
			return invalid("nats_url is required for the nats bus")
		}
	default:
		return invalid("unknown bus_backend " + c.BusBackend)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMS) }
func (c *Config) FetchTimeout() time.Duration { return ms(c.FetchTimeoutMS) }
func (c *Config) Transition() time.Duration   { return ms(c.TransitionMS) }
func (c *Config) ScoreTween() time.Duration   { return ms(c.ScoreTweenMS) }
func (c *Config) BurstDelay() time.Duration   { return ms(c.BurstDelayMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// Package simulate drives a running standings instance through its HTTP
// API so every kind of movement shows up on the display.
package simulate

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults for the simulate command.
const (
	DefaultBaseURL     = "http://localhost:9080"
	DefaultContestants = 8
	DefaultRounds      = 50
	DefaultInterval    = 2 * time.Second
	DefaultMaxBump     = 25
	DefaultTimeout     = 5 * time.Second
)

// ErrInvalidConfig is returned when a Config cannot drive a simulation.
var ErrInvalidConfig = errors.New("invalid simulation config")

// ErrMismatch is returned when the final board differs from what the
// simulation expects.
var ErrMismatch = errors.New("scoreboard does not match simulation")

// Config holds configuration for a simulation run
type Config struct {
	BaseURL     string        // Base URL of the service
	Contestants int           // Contestants seeded before the first round
	Rounds      int           // Rounds to play
	Interval    time.Duration // Pause between rounds
	Seed        uint64        // Faker seed; 0 picks a random one
	MaxBump     int64         // Largest score change per round
	Clear       bool          // Clear the board before seeding
	Timeout     time.Duration // HTTP request timeout
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Contestants < 1:
		return fmt.Errorf("%w: contestants must be at least 1", ErrInvalidConfig)
	case c.Rounds < 0:
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalidConfig)
	case c.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	case c.MaxBump < 1:
		return fmt.Errorf("%w: max-bump must be at least 1", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: url: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Stats holds run statistics
type Stats struct {
	Seeded    int
	Rounds    int
	Bumps     int
	Slumps    int
	Churns    int
	Overtakes int
	Holds     int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

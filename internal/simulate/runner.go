package simulate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/pkg/logger"
)

const standingsShown = 5

// Run executes the complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	logger.Get().Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("contestants", cfg.Contestants),
		logger.Int("rounds", cfg.Rounds),
		logger.Duration("interval", cfg.Interval),
		logger.Any("seed", cfg.Seed),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, httpClient, cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	client, err := repository.NewRemoteStore(cfg.BaseURL, httpClient)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return Simulate(ctx, client, cfg)
}

// Simulate plays cfg.Rounds rounds through client and verifies the result.
func Simulate(ctx context.Context, client Client, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	sim := newSimulator(client, cfg, stats)

	// Step 2: Optionally start from an empty board
	if cfg.Clear {
		n, err := client.Clear(ctx)
		if err != nil {
			return stats, fmt.Errorf("clear board: %w", err)
		}
		logger.Get().Info(ctx, "board cleared", logger.Int("removed", n))
	} else {
		existing, err := client.Ranking(ctx)
		if err != nil {
			return stats, fmt.Errorf("read board: %w", err)
		}
		for _, e := range existing {
			sim.board.put(e)
		}
	}

	// Step 3: Seed contestants
	if err := sim.seed(ctx, cfg.Contestants); err != nil {
		return stats, fmt.Errorf("seed contestants: %w", err)
	}

	// Step 4: Play rounds
	for i := 0; i < cfg.Rounds; i++ {
		if cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}
		sim.round(ctx)
	}

	// Step 5: Verify the board
	if err := sim.verify(ctx); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	if final, err := client.Ranking(ctx); err == nil {
		displayStandings(ctx, final, standingsShown)
	}
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// The service answers with Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("seeded", stats.Seeded),
		logger.Int("rounds", stats.Rounds),
		logger.Int("bumps", stats.Bumps),
		logger.Int("slumps", stats.Slumps),
		logger.Int("churns", stats.Churns),
		logger.Int("overtakes", stats.Overtakes),
		logger.Int("holds", stats.Holds),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
	)
}

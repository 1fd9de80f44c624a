// Command simulate plays a scripted season against a running standings
// instance so every kind of movement shows up on the display.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/standings/internal/simulate"
	"github.com/okian/standings/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simulate.Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newCmd(cfg *simulate.Config) *cobra.Command {
	var (
		logLevel string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a standings display with fake contestants",
		Example: `  # Ten contestants, a move every second, from an empty board
  simulate --contestants 10 --interval 1s --clear

  # Reproducible run against another host
  simulate --url http://scores.local:9080 --seed 7 --rounds 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				logLevel = "debug"
			}
			if err := logger.Init(); err != nil {
				return err
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return err
			}
			_, err := simulate.Run(cmd.Context(), cfg)
			return err
		},
	}

	fs := cmd.Flags()
	bindFlags(fs, cfg)
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level debug")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

// bindFlags registers the simulation flags. Underscores are accepted in
// place of dashes.
func bindFlags(fs *pflag.FlagSet, cfg *simulate.Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.BaseURL, "url", "u", simulate.DefaultBaseURL, "base URL of the standings service")
	fs.IntVarP(&cfg.Contestants, "contestants", "n", simulate.DefaultContestants, "contestants to seed before the first round")
	fs.IntVarP(&cfg.Rounds, "rounds", "r", simulate.DefaultRounds, "rounds to play")
	fs.DurationVarP(&cfg.Interval, "interval", "i", simulate.DefaultInterval, "pause between rounds")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "faker seed; 0 picks a random one")
	fs.Int64Var(&cfg.MaxBump, "max-bump", simulate.DefaultMaxBump, "largest score change per round")
	fs.BoolVar(&cfg.Clear, "clear", false, "delete every score before seeding")
	fs.DurationVar(&cfg.Timeout, "timeout", simulate.DefaultTimeout, "HTTP request timeout")
}

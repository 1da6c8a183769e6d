package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"CoinTrack/internal/di"
	"CoinTrack/internal/usecase"
	"CoinTrack/internal/view"
	"CoinTrack/pkg/config"
)

var (
	marketPages  int
	noColor      bool
	queryTimeout time.Duration
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Print the market list",
	Long: `Fetch the first pages of the market list and print them as a table.

Example usage:
  cointrack markets
  cointrack markets --pages 2 --source coinlore`,
	Args: cobra.NoArgs,
	RunE: runMarkets,
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search coins by name or symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(marketsCmd, searchCmd)

	marketsCmd.Flags().IntVar(&marketPages, "pages", 1, "Number of pages to load")
	for _, c := range []*cobra.Command{marketsCmd, searchCmd} {
		c.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
		c.Flags().DurationVar(&queryTimeout, "timeout", 2*time.Minute, "Overall timeout")
	}
}

// withTracker builds a tracker rendering into a view store, runs fn, then
// prints whatever the tracker displayed last.
func withTracker(fn func(ctx context.Context, t *usecase.Tracker) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	quiet(cfg)

	store := view.NewStore()
	t, cleanup, err := di.InitializeTracker(cfg, store)
	if err != nil {
		return fmt.Errorf("tracker initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	runErr := fn(ctx, t)
	view.Replay(store.Current(), view.NewTable(os.Stdout, noColor))
	return runErr
}

// quiet keeps log lines off stdout so the table stays clean.
func quiet(cfg *config.Config) {
	cfg.Log.Output = "stderr"
	if cfg.Log.Level == "info" || cfg.Log.Level == "debug" {
		cfg.Log.Level = "warn"
	}
}

func runMarkets(cmd *cobra.Command, args []string) error {
	if marketPages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}
	return withTracker(func(ctx context.Context, t *usecase.Tracker) error {
		for i := 0; i < marketPages; i++ {
			if err := t.LoadMore(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withTracker(func(ctx context.Context, t *usecase.Tracker) error {
		return t.SearchNow(ctx, args[0])
	})
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CoinTrack/internal/di"
	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/domain/repository"
	"CoinTrack/pkg/config"
)

var (
	configPath string
	sourceFlag string
)

// rootCmd is the base command for the CoinTrack CLI
var rootCmd = &cobra.Command{
	Use:   "cointrack",
	Short: "Cryptocurrency price tracker",
	Long: `CoinTrack lists cryptocurrency market data from CoinGecko or CoinLore.
It runs as a server with a live websocket view, or prints one-off tables.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Long: `Load the first page, refresh it periodically and serve the current view.

Example usage:
  cointrack serve --config config/config.yaml
  COINGECKO_API_KEY=... cointrack serve --source coingecko`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "Data source: coingecko or coinlore")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, environment and --source override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if sourceFlag != "" {
		if !repository.IsValidSource(models.Source(sourceFlag)) {
			return nil, fmt.Errorf("unknown source %q", sourceFlag)
		}
		cfg.Tracker.DefaultSource = sourceFlag
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	// blocks until signal
	return app.Run(context.Background())
}

package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polyhedge/polyhedge/internal/app"
	"github.com/polyhedge/polyhedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portfolio rebalancing service",
	Long: `Starts the polyhedge service, which will:
1. Accept generated hedge portfolios over HTTP
2. Open a rebalancing session per portfolio
3. Apply allocation, multiplier, budget and reset triggers
4. Stream recomputed metrics to websocket watchers
5. Record every applied trigger in the audit store

Storage, risk calibration and ports come from the environment and an
optional YAML config file (see --config).`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Create app with options
	opts := &app.Options{
		Version: Version,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configPath string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyhedge",
	Short: "Hedge real-life risks with prediction market bets",
	Long: `Polyhedge turns AI-generated hedge portfolios into live, rebalanceable
sessions. A portfolio groups prediction market bets into themed bundles that
share one budget; the engine keeps every bundle fully allocated while you
adjust individual bets, payout multipliers or the total budget.

The serve command exposes the engine over HTTP with websocket streaming of
portfolio metrics. The show command renders a generated portfolio offline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file with risk calibration")
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/polyhedge/polyhedge/internal/markets"
	"github.com/polyhedge/polyhedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List currently active markets from Polymarket",
	Long:  `Fetches active markets from the Polymarket Gamma API and prints question, outcome prices and liquidity.`,
	RunE:  runMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to fetch")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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

	limit, _ := cmd.Flags().GetInt("limit")

	client := markets.NewClient(markets.ClientConfig{
		BaseURL: cfg.GammaAPIURL,
		Logger:  logger,
	})

	fmt.Printf("Fetching up to %d active markets from Polymarket...\n\n", limit)

	list, err := client.ActiveMarkets(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No active markets found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Question", "Prices", "Liquidity")

	for i := range list {
		market := &list[i]

		question := market.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}

		prices := "N/A"
		if len(market.Outcomes) > 0 {
			parts := make([]string, 0, len(market.Outcomes))
			for _, o := range market.Outcomes {
				parts = append(parts, fmt.Sprintf("%s: $%.2f", o.Name, o.Price))
			}
			prices = strings.Join(parts, ", ")
		}

		table.Append(question, prices, fmt.Sprintf("$%.0f", market.Liquidity))
	}

	table.Render()

	fmt.Printf("\nTotal: %d markets\n", len(list))

	return nil
}

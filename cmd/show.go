package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/ingest"
	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/internal/rebalance"
	"github.com/polyhedge/polyhedge/internal/risk"
	"github.com/polyhedge/polyhedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render a generated hedge portfolio from a file",
	Long: `Reads a generation-result JSON file, validates and normalizes it, and
prints each bundle with its bets plus the portfolio metrics summary.

With --budget the portfolio is rescaled to the new total before rendering,
the same adjustment the serve API applies on a budget trigger.`,
	RunE: runShow,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("file", "f", "", "Path to a generation-result JSON file")
	showCmd.Flags().Float64P("budget", "b", 0, "Rescale the portfolio to this total budget")
	_ = showCmd.MarkFlagRequired("file")
}

func runShow(cmd *cobra.Command, args []string) error {
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

	path, _ := cmd.Flags().GetString("file")
	budget, _ := cmd.Flags().GetFloat64("budget")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open portfolio file: %w", err)
	}
	defer f.Close()

	loader := ingest.NewLoader(ingest.Config{Logger: logger})
	p, err := loader.Load(f)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}

	model := risk.NewModel(risk.Params{
		VarianceScale:    cfg.RiskVarianceScale,
		PortfolioWeight:  cfg.RiskPortfolioWeight,
		IndividualWeight: cfg.RiskIndividualWeight,
		NeutralPrice:     cfg.RiskNeutralPrice,
	})
	calc := analytics.NewCalculator(analytics.Config{Risk: model, Logger: logger})

	engine := rebalance.New(rebalance.Config{
		ID:         "show",
		Logger:     logger,
		Calculator: calc,
	}, p)

	if budget > 0 {
		if err := engine.SetBudget(budget); err != nil {
			return fmt.Errorf("rescale budget: %w", err)
		}
	}

	snapshot := engine.Snapshot()
	printBundles(&snapshot)
	printMetrics(engine.Metrics())

	return nil
}

func printBundles(p *portfolio.Portfolio) {
	for i := range p.Bundles {
		b := &p.Bundles[i]

		fmt.Printf("\n=== Bundle %d: %s ===\n", i+1, b.ThemeName())
		if b.CoverageSummary != "" {
			fmt.Println(b.CoverageSummary)
		}
		fmt.Printf("Allocated: $%.2f of $%.2f\n\n", b.TotalAllocated, b.Budget)

		if len(b.Bets) == 0 {
			continue
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Market", "Bet", "Price", "Allocation", "Payout", "Multiplier")

		for j := range b.Bets {
			bet := &b.Bets[j]

			question := bet.Market.Market.Question
			if len(question) > 50 {
				question = question[:47] + "..."
			}

			table.Append(
				fmt.Sprintf("%d", j+1),
				question,
				bet.Outcome,
				fmt.Sprintf("$%.2f", bet.CurrentPrice),
				fmt.Sprintf("$%.2f", bet.Allocation),
				fmt.Sprintf("$%.2f", bet.PotentialPayout),
				fmt.Sprintf("%.2fx", bet.PayoutMultiplier),
			)
		}

		table.Render()
	}
}

func printMetrics(m analytics.PortfolioMetrics) {
	fmt.Println("\n=== Portfolio Metrics ===")

	table := tablewriter.NewWriter(os.Stdout)
	table.Append("Total Budget", fmt.Sprintf("$%.2f", m.TotalBudget))
	table.Append("Total Allocated", fmt.Sprintf("$%.2f", m.TotalAllocated))
	table.Append("Bundles", fmt.Sprintf("%d", m.NumBundles))
	table.Append("Markets", fmt.Sprintf("%d", m.TotalMarkets))
	table.Append("Risk Score", fmt.Sprintf("%.1f / 100", m.OverallRiskScore))
	table.Append("Volatility", fmt.Sprintf("%.4f", m.PortfolioVolatility))
	table.Append("Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio))
	table.Append("Correlation", fmt.Sprintf("%.2f", m.CorrelationScore))
	table.Append("Sector Diversity", fmt.Sprintf("%.1f / 100", m.SectorDiversityScore))
	table.Append("Max Payout", fmt.Sprintf("$%.2f", m.TotalMaxPayout))
	table.Append("Avg Multiplier", fmt.Sprintf("%.2fx", m.WeightedAvgMultiplier))
	table.Append("Expected Return", fmt.Sprintf("$%.2f", m.ExpectedReturn))
	table.Render()

	fmt.Println("\nNote: These are recommendations only. No orders are placed.")
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/pkg/types"
)

// TestShowCommand_Structure tests command is properly configured
func TestShowCommand_Structure(t *testing.T) {
	if showCmd == nil {
		t.Fatal("showCmd is nil")
	}

	if showCmd.Use != "show" {
		t.Errorf("expected Use='show', got '%s'", showCmd.Use)
	}

	if showCmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestShowCommand_Flags tests command flags are defined
func TestShowCommand_Flags(t *testing.T) {
	fileFlag := showCmd.Flags().Lookup("file")
	if fileFlag == nil {
		t.Fatal("file flag not defined")
	}

	if fileFlag.Shorthand != "f" {
		t.Errorf("expected file shorthand 'f', got '%s'", fileFlag.Shorthand)
	}

	budgetFlag := showCmd.Flags().Lookup("budget")
	if budgetFlag == nil {
		t.Fatal("budget flag not defined")
	}

	if budgetFlag.Shorthand != "b" {
		t.Errorf("expected budget shorthand 'b', got '%s'", budgetFlag.Shorthand)
	}

	if budgetFlag.DefValue != "0" {
		t.Errorf("expected budget default '0', got '%s'", budgetFlag.DefValue)
	}
}

func writePortfolioFile(t *testing.T, p portfolio.Portfolio) string {
	t.Helper()

	buf, err := json.Marshal(p)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	return path
}

func showPortfolio() portfolio.Portfolio {
	return portfolio.Portfolio{
		Bundles: []portfolio.Bundle{
			{
				Budget:          100,
				CoverageSummary: "Rates: coverage against a prolonged hiking cycle",
				Bets: []portfolio.Bet{
					{
						Market: types.ScoredMarket{Market: types.Market{
							ID:        "mkt-rates-1",
							Question:  "Will the Fed hike in December?",
							Liquidity: 75000,
						}},
						Outcome:          "Yes",
						Allocation:       60,
						CurrentPrice:     0.4,
						PayoutMultiplier: 2.5,
					},
					{
						Market: types.ScoredMarket{Market: types.Market{
							ID:        "mkt-rates-2",
							Question:  "Will 30-year mortgage rates exceed 8% this year?",
							Liquidity: 42000,
						}},
						Outcome:          "No",
						Allocation:       40,
						CurrentPrice:     0.5,
						PayoutMultiplier: 2,
					},
				},
			},
		},
	}
}

func TestShowCommand_RendersPortfolio(t *testing.T) {
	path := writePortfolioFile(t, showPortfolio())

	rootCmd.SetArgs([]string{"show", "--file", path, "--budget", "250"})
	require.NoError(t, rootCmd.Execute())
}

func TestShowCommand_MissingFile(t *testing.T) {
	rootCmd.SetArgs([]string{"show", "--file", filepath.Join(t.TempDir(), "absent.json"), "--budget", "0"})

	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "open portfolio file")
}

func TestShowCommand_RejectsBrokenPortfolio(t *testing.T) {
	p := showPortfolio()
	p.Bundles[0].Bets[0].Allocation = 90 // Bets now sum 30% over the bundle budget

	path := writePortfolioFile(t, p)

	rootCmd.SetArgs([]string{"show", "--file", path, "--budget", "0"})

	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "load portfolio")
}

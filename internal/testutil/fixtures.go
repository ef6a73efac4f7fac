package testutil

import (
	"fmt"

	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/pkg/types"
)

// Market creates an active binary test market with Yes/No outcomes.
func Market(id string, question string, yesPrice float64) types.Market {
	return types.Market{
		ID:        id,
		Slug:      "test-" + id,
		Question:  question,
		Active:    true,
		Closed:    false,
		Liquidity: 50000,
		Volume:    120000,
		Outcomes: []types.Outcome{
			{Name: "Yes", Price: yesPrice},
			{Name: "No", Price: 1 - yesPrice},
		},
	}
}

// ScoredMarket wraps Market with the selection metadata the upstream
// AI stage attaches to every candidate.
func ScoredMarket(id string, question string, yesPrice float64) types.ScoredMarket {
	return types.ScoredMarket{
		Market:               Market(id, question, yesPrice),
		RelevanceScore:       0.8,
		CorrelationDirection: "positive",
		CorrelationReason:    "Pays out when the hedged risk materializes",
		RiskFactorsAddressed: []string{"rate shock"},
		RecommendedOutcome:   "Yes",
		AdjustedScore:        0.75,
	}
}

// Bet creates a bet on the Yes outcome of a fresh test market.
func Bet(id string, allocation float64, price float64, multiplier float64) portfolio.Bet {
	return portfolio.Bet{
		Market:           ScoredMarket(id, "Test market "+id+"?", price),
		Outcome:          "Yes",
		Allocation:       allocation,
		CurrentPrice:     price,
		PayoutMultiplier: multiplier,
	}
}

// Bundle groups bets under one budget with a themed coverage summary.
func Bundle(theme string, budget float64, bets ...portfolio.Bet) portfolio.Bundle {
	return portfolio.Bundle{
		Budget:          budget,
		CoverageSummary: theme + ": layered coverage of the dominant downside scenarios",
		Bets:            bets,
	}
}

// Portfolio wraps bundles into a generation payload.
func Portfolio(bundles ...portfolio.Bundle) portfolio.Portfolio {
	return portfolio.Portfolio{Bundles: bundles}
}

// GammaMarketJSON renders one market in the Gamma /markets wire format, which
// encodes outcomes and outcomePrices as JSON strings inside the JSON document.
func GammaMarketJSON(id string, question string, yesPrice float64) string {
	return fmt.Sprintf(
		`{"id":%q,"question":%q,"active":true,"closed":false,"liquidity":"50000","outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"%.2f\",\"%.2f\"]"}`,
		id, question, yesPrice, 1-yesPrice,
	)
}

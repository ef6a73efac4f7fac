package risk

import (
	"math"

	"github.com/polyhedge/polyhedge/internal/portfolio"
)

// Default calibration. The variance scale of 400 places a diversified 10-20
// position bundle in the 40-60 band instead of 10-20; it is a tunable, not a
// derived constant.
const (
	DefaultVarianceScale    = 400.0
	DefaultPortfolioWeight  = 0.7
	DefaultIndividualWeight = 0.3
	DefaultNeutralPrice     = 0.5
)

// Params holds the calibration constants of the scoring model. All fields are
// loadable from config; zero values fall back to the defaults.
type Params struct {
	VarianceScale    float64 `yaml:"variance_scale"`
	PortfolioWeight  float64 `yaml:"portfolio_weight"`
	IndividualWeight float64 `yaml:"individual_weight"`
	NeutralPrice     float64 `yaml:"neutral_price"`
}

// DefaultParams returns the stock calibration.
func DefaultParams() Params {
	return Params{
		VarianceScale:    DefaultVarianceScale,
		PortfolioWeight:  DefaultPortfolioWeight,
		IndividualWeight: DefaultIndividualWeight,
		NeutralPrice:     DefaultNeutralPrice,
	}
}

func (p Params) withDefaults() Params {
	if p.VarianceScale <= 0 {
		p.VarianceScale = DefaultVarianceScale
	}
	if p.PortfolioWeight <= 0 && p.IndividualWeight <= 0 {
		p.PortfolioWeight = DefaultPortfolioWeight
		p.IndividualWeight = DefaultIndividualWeight
	}
	if p.NeutralPrice <= 0 || p.NeutralPrice >= 1 {
		p.NeutralPrice = DefaultNeutralPrice
	}
	return p
}

// Model scores bundles and portfolios on a 0-100 scale. It is stateless and
// safe for concurrent use.
type Model struct {
	params Params
}

// NewModel creates a scoring model, filling unset params with defaults.
func NewModel(params Params) *Model {
	return &Model{params: params.withDefaults()}
}

// Params returns the effective calibration.
func (m *Model) Params() Params {
	return m.params
}

// BundleScore computes the blended risk score for a set of bets.
//
// Signal one treats the bundle as a portfolio of independent binary outcomes:
// variance = sum(w_i^2 * p_i * (1-p_i)) over normalized allocation weights,
// scaled by VarianceScale and capped at 100. Signal two ignores weights and
// measures average distance from the neutral price: (1 - avg|p-0.5|*2) * 100
// with the stock calibration. The two
// are blended 70/30 so a diversified bundle of risky assets keeps a risk
// signal. Empty bundles and zero total allocation score 0.
func (m *Model) BundleScore(bets []portfolio.Bet) float64 {
	if len(bets) == 0 {
		return 0
	}

	var totalAlloc float64
	for i := range bets {
		totalAlloc += bets[i].Allocation
	}
	if totalAlloc <= 0 {
		return 0
	}

	var variance, distSum float64
	for i := range bets {
		p := m.price(&bets[i])
		w := bets[i].Allocation / totalAlloc
		variance += w * w * p * (1 - p)
		distSum += math.Abs(p - m.params.NeutralPrice)
	}

	stdDev := math.Sqrt(variance)
	portfolioRisk := math.Min(stdDev*m.params.VarianceScale, 100)

	avgDist := distSum / float64(len(bets))
	individualRisk := (1 - avgDist*2) * 100

	return m.params.PortfolioWeight*portfolioRisk + m.params.IndividualWeight*individualRisk
}

// PortfolioScore aggregates bundle scores weighted by each bundle's share of
// the grand total allocated. Zero total allocation yields 0.
func (m *Model) PortfolioScore(bundles []portfolio.Bundle) float64 {
	var grandTotal float64
	totals := make([]float64, len(bundles))
	for i := range bundles {
		totals[i] = bundles[i].SumAllocations()
		grandTotal += totals[i]
	}
	if grandTotal <= 0 {
		return 0
	}

	var score float64
	for i := range bundles {
		if totals[i] <= 0 {
			continue
		}
		score += m.BundleScore(bundles[i].Bets) * (totals[i] / grandTotal)
	}
	return score
}

// price returns the bet's outcome price, substituting the neutral price for
// absent or non-positive values. Callers guarantee prices are probabilities.
func (m *Model) price(b *portfolio.Bet) float64 {
	if b.CurrentPrice <= 0 {
		return m.params.NeutralPrice
	}
	return b.CurrentPrice
}

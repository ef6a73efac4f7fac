package analytics

import (
	"math"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/internal/risk"
)

const (
	riskFreeRate = 0.05

	// Price variance scaled into a 0-100 diversification score. Unrelated to
	// the risk model's variance scale despite the shared magnitude.
	diversificationScale = 400

	// Average market liquidity that maps to a liquidity score of 100.
	liquidityCeiling = 100000
)

// Config holds calculator configuration.
type Config struct {
	Risk   *risk.Model
	Logger *zap.Logger
}

// Calculator derives bundle and portfolio metrics. Stateless; every call
// recomputes from the bets it is given.
type Calculator struct {
	risk   *risk.Model
	logger *zap.Logger
}

// NewCalculator creates a metrics calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{
		risk:   cfg.Risk,
		logger: cfg.Logger,
	}
}

// Bundle computes metrics for a single bundle. Empty bundles return a zeroed
// record with a neutral multiplier so a partially loaded portfolio still
// renders.
func (c *Calculator) Bundle(b *portfolio.Bundle) BundleMetrics {
	theme := b.ThemeName()

	if len(b.Bets) == 0 {
		return BundleMetrics{ThemeName: theme, AvgPayoutMultiplier: 1.0}
	}

	totalAllocation := b.SumAllocations()

	prices := make([]float64, len(b.Bets))
	var totalMaxPayout, weightedMultiplier, expectedValue, liquiditySum float64
	maxPayout := math.Inf(-1)
	minPayout := math.Inf(1)

	for i := range b.Bets {
		bet := &b.Bets[i]
		prices[i] = bet.CurrentPrice

		if bet.PotentialPayout > maxPayout {
			maxPayout = bet.PotentialPayout
		}
		if bet.PotentialPayout < minPayout {
			minPayout = bet.PotentialPayout
		}
		totalMaxPayout += bet.PotentialPayout

		weightedMultiplier += bet.Allocation * bet.PayoutMultiplier
		expectedValue += bet.Allocation * bet.CurrentPrice * bet.PayoutMultiplier
		liquiditySum += bet.Market.Market.Liquidity
	}

	avgMultiplier := 1.0
	expectedReturn := 0.0
	if totalAllocation > 0 {
		avgMultiplier = weightedMultiplier / totalAllocation
		expectedReturn = (expectedValue - totalAllocation) / totalAllocation
	}

	volatility := 0.0
	diversification := 0.0
	if len(prices) > 1 {
		variance := popVariance(prices)
		volatility = math.Sqrt(variance)
		diversification = math.Min(variance*diversificationScale, 100)
	}

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - riskFreeRate) / volatility
	}

	avgLiquidity := liquiditySum / float64(len(b.Bets))
	liquidityScore := math.Min(avgLiquidity/liquidityCeiling*100, 100)

	m := BundleMetrics{
		ThemeName:            theme,
		TotalAllocation:      totalAllocation,
		NumMarkets:           len(b.Bets),
		AvgPayoutMultiplier:  avgMultiplier,
		MaxPayout:            maxPayout,
		MinPayout:            minPayout,
		TotalMaxPayout:       totalMaxPayout,
		RiskScore:            c.risk.BundleScore(b.Bets),
		Volatility:           volatility,
		SharpeRatio:          sharpe,
		ExpectedReturn:       expectedReturn,
		DiversificationScore: diversification,
		LiquidityScore:       liquidityScore,
	}

	c.logger.Debug("bundle-metrics-calculated",
		zap.String("theme", theme),
		zap.Float64("risk-score", m.RiskScore),
		zap.Float64("expected-return", m.ExpectedReturn),
		zap.Float64("total-allocation", m.TotalAllocation))

	return m
}

// Portfolio computes portfolio-level metrics across all bundles.
//
// TotalAllocated sums the bundles' recorded TotalAllocated fields rather than
// recomputing from bets; the rebalancing engine keeps those in sync, and a
// bundle that drifted out of sync shows up as a mismatch against the
// per-bundle metrics.
func (c *Calculator) Portfolio(bundles []portfolio.Bundle) PortfolioMetrics {
	if len(bundles) == 0 {
		return PortfolioMetrics{WeightedAvgMultiplier: 1.0, BundleMetrics: []BundleMetrics{}}
	}

	perBundle := make([]BundleMetrics, len(bundles))
	for i := range bundles {
		perBundle[i] = c.Bundle(&bundles[i])
	}

	var totalAllocated, totalMaxPayout, weightedMultiplier, expectedValue float64
	var totalMarkets int
	var allPrices []float64

	for i := range bundles {
		totalAllocated += bundles[i].TotalAllocated
		totalMarkets += len(bundles[i].Bets)
		for j := range bundles[i].Bets {
			bet := &bundles[i].Bets[j]
			allPrices = append(allPrices, bet.CurrentPrice)
			totalMaxPayout += bet.PotentialPayout
			weightedMultiplier += bet.Allocation * bet.PayoutMultiplier
			expectedValue += bet.Allocation * bet.CurrentPrice * bet.PayoutMultiplier
		}
	}

	avgMultiplier := 1.0
	expectedReturn := 0.0
	if totalAllocated > 0 {
		avgMultiplier = weightedMultiplier / totalAllocated
		expectedReturn = (expectedValue - totalAllocated) / totalAllocated
	}

	volatility := 0.0
	if len(allPrices) > 1 {
		volatility = math.Sqrt(popVariance(allPrices))
	}

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - riskFreeRate) / volatility
	}

	correlation := 0.0
	if len(bundles) >= 2 {
		correlation = math.Max(0, 1-float64(len(bundles)-1)*0.2)
	}

	sectorDiversity := math.Min(float64(len(bundles))/5*100, 100)

	m := PortfolioMetrics{
		TotalBudget:           bundles[0].Budget,
		TotalAllocated:        totalAllocated,
		NumBundles:            len(bundles),
		TotalMarkets:          totalMarkets,
		OverallRiskScore:      c.risk.PortfolioScore(bundles),
		PortfolioVolatility:   volatility,
		SharpeRatio:           sharpe,
		CorrelationScore:      correlation,
		SectorDiversityScore:  sectorDiversity,
		TotalMaxPayout:        totalMaxPayout,
		WeightedAvgMultiplier: avgMultiplier,
		ExpectedReturn:        expectedReturn,
		BundleMetrics:         perBundle,
	}

	c.logger.Info("portfolio-metrics-calculated",
		zap.Int("bundles", m.NumBundles),
		zap.Int("markets", m.TotalMarkets),
		zap.Float64("risk-score", m.OverallRiskScore),
		zap.Float64("expected-return", m.ExpectedReturn))

	return m
}

// popVariance is the population variance (divisor n, matching how the scores
// were calibrated).
func popVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}

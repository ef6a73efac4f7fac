package analytics

// BundleMetrics summarizes a single themed bundle as a standalone strategy.
// Derived on every call, never cached across mutations.
type BundleMetrics struct {
	ThemeName       string  `json:"theme_name"`
	TotalAllocation float64 `json:"total_allocation"` // Recomputed from bets, not the bundle's recorded field
	NumMarkets      int     `json:"num_markets"`

	AvgPayoutMultiplier float64 `json:"avg_payout_multiplier"` // Allocation-weighted
	MaxPayout           float64 `json:"max_payout"`
	MinPayout           float64 `json:"min_payout"`
	TotalMaxPayout      float64 `json:"total_max_payout"`

	RiskScore      float64 `json:"risk_score"` // 0-100, higher = riskier
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	ExpectedReturn float64 `json:"expected_return"`

	DiversificationScore float64 `json:"diversification_score"` // 0-100
	LiquidityScore       float64 `json:"liquidity_score"`       // 0-100
}

// PortfolioMetrics summarizes the whole portfolio.
type PortfolioMetrics struct {
	TotalBudget    float64 `json:"total_budget"`
	TotalAllocated float64 `json:"total_allocated"` // Sum of recorded bundle totals, see Calculator.Portfolio
	NumBundles     int     `json:"num_bundles"`
	TotalMarkets   int     `json:"total_markets"`

	OverallRiskScore    float64 `json:"overall_risk_score"` // 0-100
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	SharpeRatio         float64 `json:"sharpe_ratio"`

	CorrelationScore     float64 `json:"correlation_score"`      // 0 = uncorrelated, 1 = highly correlated
	SectorDiversityScore float64 `json:"sector_diversity_score"` // 0-100

	TotalMaxPayout        float64 `json:"total_max_payout"`
	WeightedAvgMultiplier float64 `json:"weighted_avg_multiplier"`
	ExpectedReturn        float64 `json:"expected_return"`

	BundleMetrics []BundleMetrics `json:"bundle_metrics"`
}

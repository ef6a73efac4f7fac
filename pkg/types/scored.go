package types

// ScoredMarket is a market annotated by the upstream selection stage with its
// relevance to the user's hedging intent.
type ScoredMarket struct {
	Market               Market   `json:"market"`
	RelevanceScore       float64  `json:"relevance_score"`        // 0..1
	CorrelationDirection string   `json:"correlation_direction"`  // positive or negative
	CorrelationReason    string   `json:"correlation_explanation"`
	RecommendedOutcome   string   `json:"recommended_outcome"`
	AdjustedScore        float64  `json:"adjusted_score"` // relevance after heuristic adjustments
	RiskFactorsAddressed []string `json:"risk_factors_addressed,omitempty"`
}

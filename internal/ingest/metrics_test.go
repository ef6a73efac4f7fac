package ingest

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if PortfoliosIngestedTotal == nil {
		t.Error("PortfoliosIngestedTotal not registered")
	}

	if RejectedTotal == nil {
		t.Error("RejectedTotal not registered")
	}

	if CoercionsTotal == nil {
		t.Error("CoercionsTotal not registered")
	}
}

// TestMetrics_Labels tests label values are accepted
func TestMetrics_Labels(t *testing.T) {
	reasons := []string{
		"malformed_json",
		"bad_budget",
		"budget_mismatch",
		"bad_allocation",
		"bad_outcome",
		"bad_price",
		"bad_multiplier",
		"allocation_drift",
	}
	for _, reason := range reasons {
		RejectedTotal.WithLabelValues(reason).Inc()
	}

	fields := []string{"allocation_snap", "multiplier_derived", "payout_recomputed", "liquidity_clamped"}
	for _, field := range fields {
		CoercionsTotal.WithLabelValues(field).Inc()
	}

	PortfoliosIngestedTotal.Inc()
}

package portfolio

import (
	"fmt"
	"strings"

	"github.com/polyhedge/polyhedge/pkg/types"
)

// Tolerances for the two engine invariants. Allocations are compared against
// the bundle budget after every rebalancing operation; payouts are recomputed
// from allocation * multiplier and should only ever drift by rounding.
const (
	AllocationTolerance = 1e-6
	PayoutTolerance     = 1e-9
)

// Bet is one position within a bundle: a market, a chosen outcome, and a
// dollar allocation.
type Bet struct {
	Market            types.ScoredMarket `json:"market"`
	Outcome           string             `json:"outcome"`
	Allocation        float64            `json:"allocation"`
	AllocationPercent float64            `json:"allocation_percent"` // Informational, re-derived after every rebalance
	CurrentPrice      float64            `json:"current_price"`      // Price of the chosen outcome at creation time
	PotentialPayout   float64            `json:"potential_payout"`
	PayoutMultiplier  float64            `json:"payout_multiplier"` // Fixed market economics, never rebalanced
}

// RecomputePayout restores the payout invariant after an allocation change.
func (b *Bet) RecomputePayout() {
	b.PotentialPayout = b.Allocation * b.PayoutMultiplier
}

// Bundle is a themed group of bets sharing one budget.
type Bundle struct {
	Budget             float64  `json:"budget"`
	Bets               []Bet    `json:"bets"`
	TotalAllocated     float64  `json:"total_allocated"`
	CoverageSummary    string   `json:"coverage_summary"`
	RiskFactorsCovered []string `json:"risk_factors_covered"`
}

// ThemeName extracts the display theme from the coverage summary: everything
// before the first colon. Bundles without a colon get a generic label.
func (b *Bundle) ThemeName() string {
	if idx := strings.Index(b.CoverageSummary, ":"); idx >= 0 {
		return b.CoverageSummary[:idx]
	}
	if len(b.Bets) == 0 {
		return "Empty Bundle"
	}
	return "Bundle"
}

// SumAllocations recomputes the allocation total from the bets. The recorded
// TotalAllocated field is maintained separately by the rebalancing engine so
// drift between the two is observable.
func (b *Bundle) SumAllocations() float64 {
	var total float64
	for i := range b.Bets {
		total += b.Bets[i].Allocation
	}
	return total
}

// RefreshPercents re-derives each bet's allocation percentage from the budget.
func (b *Bundle) RefreshPercents() {
	for i := range b.Bets {
		if b.Budget > 0 {
			b.Bets[i].AllocationPercent = b.Bets[i].Allocation / b.Budget * 100
		} else {
			b.Bets[i].AllocationPercent = 0
		}
	}
}

// Clone deep-copies the bundle. Bets and risk factor slices are copied so the
// clone shares no mutable state with the source.
func (b *Bundle) Clone() Bundle {
	out := *b
	out.Bets = make([]Bet, len(b.Bets))
	copy(out.Bets, b.Bets)
	for i := range out.Bets {
		if addressed := b.Bets[i].Market.RiskFactorsAddressed; addressed != nil {
			out.Bets[i].Market.RiskFactorsAddressed = make([]string, len(addressed))
			copy(out.Bets[i].Market.RiskFactorsAddressed, addressed)
		}
	}
	if b.RiskFactorsCovered != nil {
		out.RiskFactorsCovered = make([]string, len(b.RiskFactorsCovered))
		copy(out.RiskFactorsCovered, b.RiskFactorsCovered)
	}
	return out
}

// Portfolio is the full set of bundles produced by the upstream generation
// step, plus incidental metadata carried along for display.
type Portfolio struct {
	Bundles           []Bundle `json:"bundles"`
	WebContextSummary string   `json:"web_context_summary,omitempty"`
	ExecutionTime     float64  `json:"execution_time_seconds,omitempty"`
}

// Clone deep-copies the portfolio, bundles included.
func (p *Portfolio) Clone() Portfolio {
	out := *p
	out.Bundles = make([]Bundle, len(p.Bundles))
	for i := range p.Bundles {
		out.Bundles[i] = p.Bundles[i].Clone()
	}
	return out
}

// PositionCount returns the total number of bets across all bundles.
func (p *Portfolio) PositionCount() int {
	var n int
	for i := range p.Bundles {
		n += len(p.Bundles[i].Bets)
	}
	return n
}

// Budget returns the shared budget read from the first bundle, 0 when empty.
// All bundles are validated to share one budget at ingestion.
func (p *Portfolio) Budget() float64 {
	if len(p.Bundles) == 0 {
		return 0
	}
	return p.Bundles[0].Budget
}

// String returns a one-line summary for logs.
func (p *Portfolio) String() string {
	return fmt.Sprintf("Portfolio[bundles=%d positions=%d budget=%.2f]",
		len(p.Bundles), p.PositionCount(), p.Budget())
}

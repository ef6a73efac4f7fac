package ingest

import (
	"fmt"
	"io"
	"math"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/portfolio"
)

// Upstream rounds allocations for display, so a bundle can arrive slightly
// off its budget. Drift beyond this fraction of the budget means the payload
// is inconsistent rather than rounded, and the whole load is rejected.
const maxRelativeDrift = 0.01

// ValidationError describes why a payload was rejected. Bet is -1 for
// bundle-level problems.
type ValidationError struct {
	Bundle int
	Bet    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Bet >= 0 {
		return fmt.Sprintf("bundle %d bet %d: invalid %s: %s", e.Bundle, e.Bet, e.Field, e.Reason)
	}

	return fmt.Sprintf("bundle %d: invalid %s: %s", e.Bundle, e.Field, e.Reason)
}

// Config holds loader configuration.
type Config struct {
	Logger *zap.Logger
}

// Loader decodes and normalizes upstream portfolio payloads. Everything that
// reaches the rebalancing engine has passed through Load: both invariants
// hold exactly and every numeric field is finite and in range.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a payload loader.
func NewLoader(cfg Config) *Loader {
	return &Loader{logger: cfg.Logger}
}

// Load decodes a generation payload and normalizes it for the engine.
func (l *Loader) Load(r io.Reader) (portfolio.Portfolio, error) {
	p, err := l.Decode(r)
	if err != nil {
		return portfolio.Portfolio{}, err
	}

	if err := l.Normalize(&p); err != nil {
		return portfolio.Portfolio{}, err
	}

	return p, nil
}

// Decode reads the upstream JSON envelope. The precomputed metrics block the
// generation service attaches is ignored; metrics are always recomputed from
// the positions themselves.
func (l *Loader) Decode(r io.Reader) (portfolio.Portfolio, error) {
	var p portfolio.Portfolio
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		RejectedTotal.WithLabelValues("malformed_json").Inc()
		return portfolio.Portfolio{}, fmt.Errorf("decode portfolio payload: %w", err)
	}

	return p, nil
}

// Normalize validates the portfolio in place and coerces the fields upstream
// is sloppy about. Rejections are all-or-nothing: a single bad record fails
// the whole load so the engine never sees a partial portfolio.
func (l *Loader) Normalize(p *portfolio.Portfolio) error {
	if err := l.validateSharedBudget(p); err != nil {
		return err
	}

	for bi := range p.Bundles {
		if err := l.normalizeBundle(p, bi); err != nil {
			return err
		}
	}

	PortfoliosIngestedTotal.Inc()
	l.logger.Info("portfolio-ingested",
		zap.Int("bundles", len(p.Bundles)),
		zap.Int("positions", p.PositionCount()),
		zap.Float64("budget", p.Budget()))

	return nil
}

// validateSharedBudget enforces the one-global-budget model: every bundle
// must carry the same finite, non-negative budget.
func (l *Loader) validateSharedBudget(p *portfolio.Portfolio) error {
	for bi := range p.Bundles {
		budget := p.Bundles[bi].Budget
		if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
			return l.reject(&ValidationError{Bundle: bi, Bet: -1, Field: "budget", Reason: "not a finite non-negative number"}, "bad_budget")
		}
		if math.Abs(budget-p.Bundles[0].Budget) > portfolio.AllocationTolerance {
			return l.reject(&ValidationError{Bundle: bi, Bet: -1, Field: "budget",
				Reason: fmt.Sprintf("bundles do not share one budget (%v vs %v)", budget, p.Bundles[0].Budget)}, "budget_mismatch")
		}
	}

	return nil
}

func (l *Loader) normalizeBundle(p *portfolio.Portfolio, bi int) error {
	b := &p.Bundles[bi]

	if len(b.Bets) == 0 {
		// Renderable degenerate state; nothing to check against the budget.
		l.logger.Warn("empty-bundle-ingested", zap.Int("bundle", bi))
		b.TotalAllocated = 0
		return nil
	}

	for i := range b.Bets {
		if err := l.normalizeBet(b, bi, i); err != nil {
			return err
		}
	}

	sum := b.SumAllocations()
	drift := b.Budget - sum

	if b.Budget > 0 {
		if math.Abs(drift)/b.Budget > maxRelativeDrift {
			return l.reject(&ValidationError{Bundle: bi, Bet: -1, Field: "allocations",
				Reason: fmt.Sprintf("sum %v deviates from budget %v by more than %v%%", sum, b.Budget, maxRelativeDrift*100)}, "allocation_drift")
		}
	} else if sum > portfolio.AllocationTolerance {
		return l.reject(&ValidationError{Bundle: bi, Bet: -1, Field: "allocations",
			Reason: "allocations present on a zero-budget bundle"}, "allocation_drift")
	}

	if drift != 0 {
		// Fold rounding drift into the largest bet, the same rule the
		// engine's normalization uses.
		target := 0
		for i := range b.Bets {
			if b.Bets[i].Allocation > b.Bets[target].Allocation {
				target = i
			}
		}
		snapped := b.Bets[target].Allocation + drift
		if snapped < 0 {
			return l.reject(&ValidationError{Bundle: bi, Bet: target, Field: "allocation",
				Reason: "drift correction would make the allocation negative"}, "allocation_drift")
		}
		b.Bets[target].Allocation = snapped
		b.Bets[target].RecomputePayout()
		CoercionsTotal.WithLabelValues("allocation_snap").Inc()
		l.logger.Debug("allocation-drift-snapped-at-ingest",
			zap.Int("bundle", bi),
			zap.Int("bet", target),
			zap.Float64("drift", drift))
	}

	b.TotalAllocated = b.Budget
	b.RefreshPercents()

	return nil
}

func (l *Loader) normalizeBet(b *portfolio.Bundle, bi, i int) error {
	bet := &b.Bets[i]

	if math.IsNaN(bet.Allocation) || math.IsInf(bet.Allocation, 0) || bet.Allocation < 0 {
		return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "allocation", Reason: "not a finite non-negative number"}, "bad_allocation")
	}

	if strings.TrimSpace(bet.Outcome) == "" {
		return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "outcome", Reason: "empty"}, "bad_outcome")
	}

	if math.IsNaN(bet.CurrentPrice) || bet.CurrentPrice < 0 || bet.CurrentPrice > 1 {
		return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "current_price", Reason: "not a probability in [0,1]"}, "bad_price")
	}

	if math.IsNaN(bet.PayoutMultiplier) || math.IsInf(bet.PayoutMultiplier, 0) || bet.PayoutMultiplier < 0 {
		return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "payout_multiplier", Reason: "not a finite non-negative number"}, "bad_multiplier")
	}

	// A missing multiplier is derived from the price the way the generation
	// service defines it: payout multiplier = 1 / price.
	if bet.PayoutMultiplier == 0 {
		if bet.CurrentPrice <= 0 {
			return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "payout_multiplier", Reason: "missing and not derivable from a zero price"}, "bad_multiplier")
		}
		bet.PayoutMultiplier = 1 / bet.CurrentPrice
		CoercionsTotal.WithLabelValues("multiplier_derived").Inc()
	}

	if bet.PayoutMultiplier < 1 {
		return l.reject(&ValidationError{Bundle: bi, Bet: i, Field: "payout_multiplier", Reason: "below 1"}, "bad_multiplier")
	}

	// Upstream payouts are rounded for display; recompute so the payout
	// invariant holds exactly from the start.
	want := bet.Allocation * bet.PayoutMultiplier
	if math.Abs(bet.PotentialPayout-want) > portfolio.PayoutTolerance {
		CoercionsTotal.WithLabelValues("payout_recomputed").Inc()
		l.logger.Debug("payout-recomputed-at-ingest",
			zap.Int("bundle", bi),
			zap.Int("bet", i),
			zap.Float64("was", bet.PotentialPayout),
			zap.Float64("now", want))
	}
	bet.PotentialPayout = want

	if bet.Market.Market.Liquidity < 0 {
		bet.Market.Market.Liquidity = 0
		CoercionsTotal.WithLabelValues("liquidity_clamped").Inc()
	}

	return nil
}

func (l *Loader) reject(verr *ValidationError, reason string) error {
	RejectedTotal.WithLabelValues(reason).Inc()
	l.logger.Warn("portfolio-rejected",
		zap.Int("bundle", verr.Bundle),
		zap.Int("bet", verr.Bet),
		zap.String("field", verr.Field),
		zap.String("reason", verr.Reason))
	return verr
}

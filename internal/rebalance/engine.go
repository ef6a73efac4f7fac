package rebalance

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/portfolio"
)

// Index errors returned when a trigger names a bundle or bet that does not
// exist. Value-domain problems (negative budget, NaN allocations) follow the
// degrade-to-no-op model instead and never error.
var (
	ErrBundleIndex = errors.New("bundle index out of range")
	ErrBetIndex    = errors.New("bet index out of range")
)

// Config holds engine configuration.
type Config struct {
	ID         string // Session identifier, used in logs and audit events
	Logger     *zap.Logger
	Calculator *analytics.Calculator
}

// Engine owns a working portfolio and its pristine snapshot and applies the
// three rebalancing triggers: single-bet edits, global budget changes, and
// per-bundle resets. Every trigger is one critical section; the working copy
// is never visible mid-transition.
type Engine struct {
	mu           sync.Mutex
	id           string
	logger       *zap.Logger
	calc         *analytics.Calculator
	current      portfolio.Portfolio
	pristine     portfolio.Portfolio
	targetBudget float64 // The user's currently intended global budget
}

// New creates an engine seeded with an initial portfolio. The portfolio is
// cloned twice: once for the working copy and once for the pristine snapshot
// used by ResetBundle. The caller's copy is not retained.
func New(cfg Config, p portfolio.Portfolio) *Engine {
	e := &Engine{
		id:           cfg.ID,
		logger:       cfg.Logger,
		calc:         cfg.Calculator,
		current:      p.Clone(),
		pristine:     p.Clone(),
		targetBudget: p.Budget(),
	}

	e.logger.Info("rebalance-engine-created",
		zap.String("engine-id", e.id),
		zap.Int("bundles", len(e.current.Bundles)),
		zap.Int("positions", e.current.PositionCount()),
		zap.Float64("budget", e.targetBudget))

	return e
}

// ID returns the engine's session identifier.
func (e *Engine) ID() string {
	return e.id
}

// TargetBudget returns the user's currently intended global budget.
func (e *Engine) TargetBudget() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targetBudget
}

// Snapshot returns a deep copy of the working portfolio.
func (e *Engine) Snapshot() portfolio.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// Pristine returns a deep copy of the pristine snapshot.
func (e *Engine) Pristine() portfolio.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pristine.Clone()
}

// Metrics recomputes portfolio metrics from the current working copy.
func (e *Engine) Metrics() analytics.PortfolioMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calc.Portfolio(e.current.Bundles)
}

// SetBetAllocation pins one bet's allocation and redistributes the remainder
// of the bundle budget across the other bets proportionally to their current
// allocations (equal split when the others sit at zero). The edited bundle
// leaves with sum(allocations) == budget exactly.
func (e *Engine) SetBetAllocation(bundleIdx, betIdx int, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	b, err := e.bundleAt(bundleIdx)
	if err != nil {
		OperationsTotal.WithLabelValues(triggerSetAllocation, resultError).Inc()
		return err
	}

	// An allocation edit against an empty bundle degrades to a no-op.
	if len(b.Bets) == 0 {
		e.logger.Debug("allocation-edit-on-empty-bundle", zap.String("engine-id", e.id), zap.Int("bundle", bundleIdx))
		OperationsTotal.WithLabelValues(triggerSetAllocation, resultNoop).Inc()
		return nil
	}

	if betIdx < 0 || betIdx >= len(b.Bets) {
		OperationsTotal.WithLabelValues(triggerSetAllocation, resultError).Inc()
		return fmt.Errorf("%w: bet %d in bundle %d with %d bets", ErrBetIndex, betIdx, bundleIdx, len(b.Bets))
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		e.logger.Warn("allocation-edit-not-a-number", zap.String("engine-id", e.id), zap.Int("bundle", bundleIdx), zap.Int("bet", betIdx))
		OperationsTotal.WithLabelValues(triggerSetAllocation, resultNoop).Inc()
		return nil
	}

	// Clamp into [0, budget].
	if value < 0 {
		value = 0
	}
	if value > b.Budget {
		value = b.Budget
	}

	remainder := b.Budget - value

	var sumOthers float64
	for i := range b.Bets {
		if i != betIdx {
			sumOthers += b.Bets[i].Allocation
		}
	}

	switch {
	case sumOthers > 0:
		// Proportional redistribution preserving the others' relative weights.
		for i := range b.Bets {
			if i == betIdx {
				continue
			}
			b.Bets[i].Allocation = remainder * (b.Bets[i].Allocation / sumOthers)
		}
	case len(b.Bets) > 1:
		// All others were at zero: split the remainder equally.
		share := remainder / float64(len(b.Bets)-1)
		for i := range b.Bets {
			if i != betIdx {
				b.Bets[i].Allocation = share
			}
		}
	}

	b.Bets[betIdx].Allocation = value

	e.snapToBudget(b, betIdx, bundleIdx)
	finishBundle(b)
	b.TotalAllocated = b.Budget

	e.logger.Info("bet-allocation-updated",
		zap.String("engine-id", e.id),
		zap.Int("bundle", bundleIdx),
		zap.Int("bet", betIdx),
		zap.Float64("allocation", b.Bets[betIdx].Allocation),
		zap.Float64("budget", b.Budget))

	OperationsTotal.WithLabelValues(triggerSetAllocation, resultApplied).Inc()
	OperationDurationSeconds.Observe(time.Since(start).Seconds())

	return nil
}

// SetBetMultiplier updates one bet's payout multiplier and recomputes its
// payout. Multipliers are market economics, so no redistribution happens.
func (e *Engine) SetBetMultiplier(bundleIdx, betIdx int, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.bundleAt(bundleIdx)
	if err != nil {
		OperationsTotal.WithLabelValues(triggerSetMultiplier, resultError).Inc()
		return err
	}

	if len(b.Bets) == 0 {
		OperationsTotal.WithLabelValues(triggerSetMultiplier, resultNoop).Inc()
		return nil
	}

	if betIdx < 0 || betIdx >= len(b.Bets) {
		OperationsTotal.WithLabelValues(triggerSetMultiplier, resultError).Inc()
		return fmt.Errorf("%w: bet %d in bundle %d with %d bets", ErrBetIndex, betIdx, bundleIdx, len(b.Bets))
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		e.logger.Warn("multiplier-edit-rejected",
			zap.String("engine-id", e.id),
			zap.Int("bundle", bundleIdx),
			zap.Int("bet", betIdx),
			zap.Float64("value", value))
		OperationsTotal.WithLabelValues(triggerSetMultiplier, resultNoop).Inc()
		return nil
	}

	b.Bets[betIdx].PayoutMultiplier = value
	b.Bets[betIdx].RecomputePayout()

	e.logger.Info("bet-multiplier-updated",
		zap.String("engine-id", e.id),
		zap.Int("bundle", bundleIdx),
		zap.Int("bet", betIdx),
		zap.Float64("multiplier", value))

	OperationsTotal.WithLabelValues(triggerSetMultiplier, resultApplied).Inc()

	return nil
}

// SetBudget rescales every bundle to a new shared budget, preserving each
// bet's allocation percentage. Non-positive or non-finite budgets and empty
// portfolios degrade to a no-op.
func (e *Engine) SetBudget(newBudget float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if math.IsNaN(newBudget) || math.IsInf(newBudget, 0) || newBudget <= 0 {
		e.logger.Warn("budget-change-rejected", zap.String("engine-id", e.id), zap.Float64("budget", newBudget))
		OperationsTotal.WithLabelValues(triggerSetBudget, resultNoop).Inc()
		return nil
	}

	if len(e.current.Bundles) == 0 {
		OperationsTotal.WithLabelValues(triggerSetBudget, resultNoop).Inc()
		return nil
	}

	oldBudget := e.current.Bundles[0].Budget
	if oldBudget <= 0 {
		e.logger.Warn("budget-change-with-zero-base", zap.String("engine-id", e.id))
		OperationsTotal.WithLabelValues(triggerSetBudget, resultNoop).Inc()
		return nil
	}

	scale := newBudget / oldBudget
	for i := range e.current.Bundles {
		b := &e.current.Bundles[i]
		b.Budget = newBudget
		for j := range b.Bets {
			b.Bets[j].Allocation *= scale
		}
		e.snapToBudget(b, -1, i)
		finishBundle(b)
		// Equals newBudget after the snap; stays 0 for an empty bundle.
		b.TotalAllocated = b.SumAllocations()
	}

	e.targetBudget = newBudget

	e.logger.Info("budget-updated",
		zap.String("engine-id", e.id),
		zap.Float64("old-budget", oldBudget),
		zap.Float64("new-budget", newBudget),
		zap.Float64("scale", scale))

	OperationsTotal.WithLabelValues(triggerSetBudget, resultApplied).Inc()
	OperationDurationSeconds.Observe(time.Since(start).Seconds())

	return nil
}

// ResetBundle restores one bundle from the pristine snapshot. If the user's
// target budget has moved since load, the restored bundle is rescaled to it
// so reset undoes edits without reverting the budget preference.
func (e *Engine) ResetBundle(bundleIdx int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if bundleIdx < 0 || bundleIdx >= len(e.pristine.Bundles) || bundleIdx >= len(e.current.Bundles) {
		OperationsTotal.WithLabelValues(triggerResetBundle, resultError).Inc()
		return fmt.Errorf("%w: bundle %d of %d", ErrBundleIndex, bundleIdx, len(e.pristine.Bundles))
	}

	restored := e.pristine.Bundles[bundleIdx].Clone()
	originalBudget := restored.Budget

	if originalBudget > 0 && e.targetBudget > 0 && e.targetBudget != originalBudget {
		scale := e.targetBudget / originalBudget
		restored.Budget = e.targetBudget
		for i := range restored.Bets {
			restored.Bets[i].Allocation *= scale
		}
		e.snapToBudget(&restored, -1, bundleIdx)
		finishBundle(&restored)
		restored.TotalAllocated = restored.SumAllocations()

		e.logger.Info("bundle-reset-rescaled",
			zap.String("engine-id", e.id),
			zap.Int("bundle", bundleIdx),
			zap.Float64("original-budget", originalBudget),
			zap.Float64("target-budget", e.targetBudget))
	} else {
		e.logger.Info("bundle-reset",
			zap.String("engine-id", e.id),
			zap.Int("bundle", bundleIdx))
	}

	e.current.Bundles[bundleIdx] = restored

	OperationsTotal.WithLabelValues(triggerResetBundle, resultApplied).Inc()
	OperationDurationSeconds.Observe(time.Since(start).Seconds())

	return nil
}

// bundleAt returns the working bundle at idx or ErrBundleIndex.
func (e *Engine) bundleAt(idx int) (*portfolio.Bundle, error) {
	if idx < 0 || idx >= len(e.current.Bundles) {
		return nil, fmt.Errorf("%w: bundle %d of %d", ErrBundleIndex, idx, len(e.current.Bundles))
	}
	return &e.current.Bundles[idx], nil
}

// snapToBudget forces sum(allocations) == budget exactly by folding the
// residual rounding drift into the largest bet other than preserveIdx (pass
// -1 to allow any bet). A single-bet bundle snaps its only bet, overriding a
// preserved edit value since the invariant wins over the exact user input.
func (e *Engine) snapToBudget(b *portfolio.Bundle, preserveIdx, bundleIdx int) {
	if len(b.Bets) == 0 {
		return
	}

	drift := b.Budget - b.SumAllocations()
	AllocationDrift.Observe(math.Abs(drift))
	if drift == 0 {
		return
	}

	target := -1
	for i := range b.Bets {
		if i == preserveIdx {
			continue
		}
		if target == -1 || b.Bets[i].Allocation > b.Bets[target].Allocation {
			target = i
		}
	}
	if target == -1 {
		target = preserveIdx
	}

	b.Bets[target].Allocation += drift

	e.logger.Debug("allocation-drift-snapped",
		zap.String("engine-id", e.id),
		zap.Int("bundle", bundleIdx),
		zap.Int("bet", target),
		zap.Float64("drift", drift))
}

// finishBundle recomputes the derived per-bet fields after allocations moved.
func finishBundle(b *portfolio.Bundle) {
	for i := range b.Bets {
		b.Bets[i].RecomputePayout()
	}
	b.RefreshPercents()
}

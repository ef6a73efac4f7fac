package rebalance

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/internal/risk"
)

func newTestEngine(t *testing.T, p portfolio.Portfolio) *Engine {
	t.Helper()
	return New(Config{
		ID:     "test-engine",
		Logger: zap.NewNop(),
		Calculator: analytics.NewCalculator(analytics.Config{
			Risk:   risk.NewModel(risk.DefaultParams()),
			Logger: zap.NewNop(),
		}),
	}, p)
}

func testPortfolio(budget float64, allocations ...[]float64) portfolio.Portfolio {
	bundles := make([]portfolio.Bundle, len(allocations))
	for i, allocs := range allocations {
		bets := make([]portfolio.Bet, len(allocs))
		var total float64
		for j, a := range allocs {
			bets[j] = portfolio.Bet{
				Outcome:          "Yes",
				Allocation:       a,
				CurrentPrice:     0.5,
				PayoutMultiplier: 2.0,
				PotentialPayout:  a * 2.0,
			}
			total += a
		}
		bundles[i] = portfolio.Bundle{
			Budget:          budget,
			Bets:            bets,
			TotalAllocated:  total,
			CoverageSummary: "Theme: test",
		}
	}
	return portfolio.Portfolio{Bundles: bundles}
}

func assertInvariants(t *testing.T, p portfolio.Portfolio) {
	t.Helper()
	for bi := range p.Bundles {
		b := &p.Bundles[bi]
		if len(b.Bets) == 0 {
			continue
		}
		if drift := math.Abs(b.SumAllocations() - b.Budget); drift > portfolio.AllocationTolerance {
			t.Errorf("bundle %d: |sum - budget| = %v exceeds tolerance", bi, drift)
		}
		for i := range b.Bets {
			bet := &b.Bets[i]
			if d := math.Abs(bet.PotentialPayout - bet.Allocation*bet.PayoutMultiplier); d > portfolio.PayoutTolerance {
				t.Errorf("bundle %d bet %d: payout drift %v exceeds tolerance", bi, i, d)
			}
		}
	}
}

func TestSetBetAllocation_EqualSplitWhenOthersZero(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{100, 0, 0}))

	if err := e.SetBetAllocation(0, 0, 40); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	want := []float64{40, 30, 30}
	for i, w := range want {
		if math.Abs(got.Bets[i].Allocation-w) > 1e-9 {
			t.Errorf("bet %d allocation = %v, want %v", i, got.Bets[i].Allocation, w)
		}
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBetAllocation_ProportionalRedistribution(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40, 0}))

	if err := e.SetBetAllocation(0, 2, 20); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	want := []float64{48, 32, 20}
	for i, w := range want {
		if math.Abs(got.Bets[i].Allocation-w) > 1e-9 {
			t.Errorf("bet %d allocation = %v, want %v", i, got.Bets[i].Allocation, w)
		}
	}
	if got.TotalAllocated != got.Budget {
		t.Errorf("TotalAllocated = %v, want budget %v", got.TotalAllocated, got.Budget)
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBetAllocation_PreservesOthersRatios(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{50, 30, 20}))

	if err := e.SetBetAllocation(0, 0, 20); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	ratio := got.Bets[1].Allocation / got.Bets[2].Allocation
	if math.Abs(ratio-1.5) > 1e-9 {
		t.Errorf("others ratio = %v, want 1.5 preserved", ratio)
	}
	if math.Abs(got.Bets[0].Allocation-20) > 0 {
		t.Errorf("target allocation = %v, want exactly 20", got.Bets[0].Allocation)
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBetAllocation_Clamping(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{name: "negative-clamps-to-zero", value: -10, want: 0},
		{name: "above-budget-clamps-to-budget", value: 250, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))
			if err := e.SetBetAllocation(0, 0, tt.value); err != nil {
				t.Fatalf("SetBetAllocation: %v", err)
			}
			got := e.Snapshot().Bundles[0].Bets[0].Allocation
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("allocation = %v, want %v", got, tt.want)
			}
			assertInvariants(t, e.Snapshot())
		})
	}
}

func TestSetBetAllocation_SingleBetBundleSnapsToBudget(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{100}))

	// With no other bets to absorb the remainder, the invariant wins over
	// the requested value.
	if err := e.SetBetAllocation(0, 0, 40); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}

	got := e.Snapshot().Bundles[0].Bets[0].Allocation
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("allocation = %v, want snapped to 100", got)
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBetAllocation_Errors(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	if err := e.SetBetAllocation(5, 0, 10); !errors.Is(err, ErrBundleIndex) {
		t.Errorf("bundle index error = %v, want ErrBundleIndex", err)
	}
	if err := e.SetBetAllocation(0, 7, 10); !errors.Is(err, ErrBetIndex) {
		t.Errorf("bet index error = %v, want ErrBetIndex", err)
	}
	if err := e.SetBetAllocation(-1, 0, 10); !errors.Is(err, ErrBundleIndex) {
		t.Errorf("negative bundle index error = %v, want ErrBundleIndex", err)
	}
}

func TestSetBetAllocation_DefensiveNoops(t *testing.T) {
	t.Run("empty-bundle", func(t *testing.T) {
		e := newTestEngine(t, testPortfolio(100, []float64{}))
		if err := e.SetBetAllocation(0, 0, 10); err != nil {
			t.Errorf("empty bundle edit should no-op, got %v", err)
		}
	})

	t.Run("nan-value", func(t *testing.T) {
		e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))
		if err := e.SetBetAllocation(0, 0, math.NaN()); err != nil {
			t.Errorf("NaN edit should no-op, got %v", err)
		}
		got := e.Snapshot().Bundles[0].Bets[0].Allocation
		if got != 60 {
			t.Errorf("allocation = %v, want untouched 60", got)
		}
	})
}

func TestSetBetAllocation_SequencePreservesInvariants(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{25, 25, 25, 25}))

	edits := []struct {
		bet   int
		value float64
	}{
		{0, 70}, {1, 5}, {2, 50}, {3, 0}, {0, 100}, {1, 33.33}, {2, 0.01},
	}

	for _, edit := range edits {
		if err := e.SetBetAllocation(0, edit.bet, edit.value); err != nil {
			t.Fatalf("SetBetAllocation(%d, %v): %v", edit.bet, edit.value, err)
		}
		assertInvariants(t, e.Snapshot())
	}
}

func TestSetBetMultiplier(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	if err := e.SetBetMultiplier(0, 0, 3.5); err != nil {
		t.Fatalf("SetBetMultiplier: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	if got.Bets[0].PayoutMultiplier != 3.5 {
		t.Errorf("multiplier = %v, want 3.5", got.Bets[0].PayoutMultiplier)
	}
	if math.Abs(got.Bets[0].PotentialPayout-210) > portfolio.PayoutTolerance {
		t.Errorf("payout = %v, want 210", got.Bets[0].PotentialPayout)
	}

	// No redistribution: the other bet is untouched.
	if got.Bets[1].Allocation != 40 || got.Bets[1].PotentialPayout != 80 {
		t.Errorf("other bet changed: %+v", got.Bets[1])
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBetMultiplier_RejectsNonPositive(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := e.SetBetMultiplier(0, 0, v); err != nil {
			t.Errorf("SetBetMultiplier(%v) should no-op, got %v", v, err)
		}
	}

	if got := e.Snapshot().Bundles[0].Bets[0].PayoutMultiplier; got != 2.0 {
		t.Errorf("multiplier = %v, want untouched 2.0", got)
	}
}

func TestSetBudget_Rescale(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{70, 30}))

	if err := e.SetBudget(200); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	if got.Budget != 200 {
		t.Errorf("budget = %v, want 200", got.Budget)
	}
	want := []float64{140, 60}
	for i, w := range want {
		if math.Abs(got.Bets[i].Allocation-w) > 1e-9 {
			t.Errorf("bet %d allocation = %v, want %v", i, got.Bets[i].Allocation, w)
		}
		if math.Abs(got.Bets[i].PotentialPayout-w*2.0) > portfolio.PayoutTolerance {
			t.Errorf("bet %d payout = %v, want %v", i, got.Bets[i].PotentialPayout, w*2.0)
		}
	}
	if e.TargetBudget() != 200 {
		t.Errorf("TargetBudget = %v, want 200", e.TargetBudget())
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBudget_PreservesAllocationPercentages(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{55, 25, 20}))

	before := e.Snapshot().Bundles[0]
	percentsBefore := make([]float64, len(before.Bets))
	for i := range before.Bets {
		percentsBefore[i] = before.Bets[i].Allocation / before.Budget
	}

	if err := e.SetBudget(333.33); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}

	after := e.Snapshot().Bundles[0]
	for i := range after.Bets {
		percent := after.Bets[i].Allocation / after.Budget
		if math.Abs(percent-percentsBefore[i]) > 1e-9 {
			t.Errorf("bet %d percentage = %v, want %v unchanged", i, percent, percentsBefore[i])
		}
	}
	assertInvariants(t, e.Snapshot())
}

func TestSetBudget_AppliesToAllBundles(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}, []float64{100}))

	if err := e.SetBudget(50); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}

	snap := e.Snapshot()
	for i := range snap.Bundles {
		if snap.Bundles[i].Budget != 50 {
			t.Errorf("bundle %d budget = %v, want 50", i, snap.Bundles[i].Budget)
		}
	}
	assertInvariants(t, snap)
}

func TestSetBudget_DefensiveNoops(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	for _, v := range []float64{0, -100, math.NaN(), math.Inf(1)} {
		if err := e.SetBudget(v); err != nil {
			t.Errorf("SetBudget(%v) should no-op, got %v", v, err)
		}
	}

	got := e.Snapshot().Bundles[0]
	if got.Budget != 100 || got.Bets[0].Allocation != 60 {
		t.Errorf("portfolio changed by rejected budgets: %+v", got)
	}

	empty := newTestEngine(t, portfolio.Portfolio{})
	if err := empty.SetBudget(100); err != nil {
		t.Errorf("SetBudget on empty portfolio should no-op, got %v", err)
	}
}

func TestResetBundle_IdempotentAfterLoad(t *testing.T) {
	p := testPortfolio(100, []float64{60, 40})
	e := newTestEngine(t, p)

	if err := e.ResetBundle(0); err != nil {
		t.Fatalf("ResetBundle: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	want := p.Bundles[0]
	if got.Budget != want.Budget || got.TotalAllocated != want.TotalAllocated {
		t.Errorf("reset bundle header = %v/%v, want %v/%v",
			got.Budget, got.TotalAllocated, want.Budget, want.TotalAllocated)
	}
	for i := range want.Bets {
		if !reflect.DeepEqual(got.Bets[i], want.Bets[i]) {
			t.Errorf("bet %d = %+v, want pristine %+v", i, got.Bets[i], want.Bets[i])
		}
	}
}

func TestResetBundle_RestoresAfterEdits(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	if err := e.SetBetAllocation(0, 0, 90); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}
	if err := e.ResetBundle(0); err != nil {
		t.Fatalf("ResetBundle: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	if math.Abs(got.Bets[0].Allocation-60) > 1e-9 || math.Abs(got.Bets[1].Allocation-40) > 1e-9 {
		t.Errorf("allocations = [%v, %v], want pristine [60, 40]",
			got.Bets[0].Allocation, got.Bets[1].Allocation)
	}
	assertInvariants(t, e.Snapshot())
}

func TestResetBundle_RescalesToTargetBudget(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	if err := e.SetBudget(250); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	if err := e.SetBetAllocation(0, 0, 200); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}
	if err := e.ResetBundle(0); err != nil {
		t.Fatalf("ResetBundle: %v", err)
	}

	got := e.Snapshot().Bundles[0]
	if got.Budget != 250 {
		t.Errorf("budget = %v, want target 250", got.Budget)
	}
	// Pristine [60, 40] scaled by 2.5.
	if math.Abs(got.Bets[0].Allocation-150) > 1e-9 || math.Abs(got.Bets[1].Allocation-100) > 1e-9 {
		t.Errorf("allocations = [%v, %v], want [150, 100]",
			got.Bets[0].Allocation, got.Bets[1].Allocation)
	}
	assertInvariants(t, e.Snapshot())
}

func TestResetBundle_LeavesOtherBundlesAlone(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}, []float64{50, 50}))

	if err := e.SetBetAllocation(1, 0, 90); err != nil {
		t.Fatalf("SetBetAllocation: %v", err)
	}
	if err := e.ResetBundle(0); err != nil {
		t.Fatalf("ResetBundle: %v", err)
	}

	got := e.Snapshot().Bundles[1]
	if math.Abs(got.Bets[0].Allocation-90) > 1e-9 {
		t.Errorf("bundle 1 bet 0 allocation = %v, want edit preserved at 90", got.Bets[0].Allocation)
	}
}

func TestResetBundle_IndexError(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	if err := e.ResetBundle(3); !errors.Is(err, ErrBundleIndex) {
		t.Errorf("ResetBundle(3) = %v, want ErrBundleIndex", err)
	}
}

func TestEngine_WorkingCopyIsolation(t *testing.T) {
	p := testPortfolio(100, []float64{60, 40})
	e := newTestEngine(t, p)

	// Mutating the caller's portfolio after New must not affect the engine.
	p.Bundles[0].Bets[0].Allocation = 999

	if got := e.Snapshot().Bundles[0].Bets[0].Allocation; got != 60 {
		t.Errorf("engine shares storage with caller: allocation = %v", got)
	}

	// Mutating a snapshot must not affect the engine either.
	snap := e.Snapshot()
	snap.Bundles[0].Bets[0].Allocation = 777
	if got := e.Snapshot().Bundles[0].Bets[0].Allocation; got != 60 {
		t.Errorf("snapshot shares storage with engine: allocation = %v", got)
	}
}

func TestEngine_MetricsRefreshAfterTrigger(t *testing.T) {
	e := newTestEngine(t, testPortfolio(100, []float64{60, 40}))

	before := e.Metrics()
	if err := e.SetBudget(200); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	after := e.Metrics()

	if before.TotalBudget != 100 || after.TotalBudget != 200 {
		t.Errorf("metrics budgets = %v then %v, want 100 then 200", before.TotalBudget, after.TotalBudget)
	}
	if after.TotalAllocated != 200 {
		t.Errorf("TotalAllocated = %v, want 200", after.TotalAllocated)
	}
}

func TestEngine_RandomizedTriggerSequence(t *testing.T) {
	e := newTestEngine(t, testPortfolio(1000,
		[]float64{400, 300, 200, 100},
		[]float64{250, 250, 250, 250},
		[]float64{1000, 0, 0},
	))

	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			bundle := rng.Intn(3)
			bet := rng.Intn(3)
			value := rng.Float64() * 1500 // Sometimes beyond budget to exercise clamping
			if err := e.SetBetAllocation(bundle, bet, value); err != nil {
				t.Fatalf("op %d SetBetAllocation: %v", i, err)
			}
		case 1:
			budget := rng.Float64()*2000 + 1
			if err := e.SetBudget(budget); err != nil {
				t.Fatalf("op %d SetBudget: %v", i, err)
			}
		case 2:
			if err := e.ResetBundle(rng.Intn(3)); err != nil {
				t.Fatalf("op %d ResetBundle: %v", i, err)
			}
		case 3:
			if err := e.SetBetMultiplier(rng.Intn(3), rng.Intn(3), rng.Float64()*10+0.5); err != nil {
				t.Fatalf("op %d SetBetMultiplier: %v", i, err)
			}
		}

		assertInvariants(t, e.Snapshot())
	}
}

//go:build integration
// +build integration

package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/storage"
	"github.com/polyhedge/polyhedge/internal/testutil"
)

// TestE2E_RebalanceFlow drives the complete flow:
// 1. Payload ingest and validation
// 2. Session creation
// 3. Rebalancing triggers
// 4. Audit trail in SQLite
// 5. Market catalog reads
func TestE2E_RebalanceFlow(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	mockAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "["+testutil.GammaMarketJSON("501", "Will mortgage rates exceed 8%?", 0.4)+"]")
	}))
	defer mockAPI.Close()

	cfg := testConfig()
	cfg.GammaAPIURL = mockAPI.URL
	cfg.StorageMode = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "events.db")

	application, err := New(cfg, logger, &Options{Version: "e2e"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	// 1. Ingest a generation payload
	rateBet := testutil.Bet("501", 60, 0.4, 2.5)
	priceBet := testutil.Bet("502", 40, 0.5, 2)
	priceBet.Outcome = "No"

	payload, err := json.Marshal(testutil.Portfolio(testutil.Bundle("Housing", 100, rateBet, priceBet)))
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	p, err := application.loader.Load(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Log("✓ Payload ingested")

	// 2. Open a session
	sess, err := application.sessions.Create(p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Logf("✓ Session created: %s", sess.ID)

	ctx := context.Background()

	// 3. Rebalancing triggers
	m, err := sess.SetBetAllocation(ctx, 0, 0, 30)
	if err != nil {
		t.Fatalf("SetBetAllocation() error = %v", err)
	}
	if m.TotalAllocated != 100 {
		t.Errorf("total allocated after trigger = %v, want 100", m.TotalAllocated)
	}

	snapshot := sess.Snapshot()
	if got := snapshot.Bundles[0].Bets[0].Allocation; got != 30 {
		t.Errorf("bets[0].Allocation = %v, want 30", got)
	}
	if got := snapshot.Bundles[0].Bets[1].Allocation; got != 70 {
		t.Errorf("bets[1].Allocation = %v, want 70", got)
	}

	m, err = sess.SetBudget(ctx, 200)
	if err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if m.TotalBudget != 200 {
		t.Errorf("total budget after trigger = %v, want 200", m.TotalBudget)
	}

	snapshot = sess.Snapshot()
	if got := snapshot.Bundles[0].Bets[0].Allocation; got != 60 {
		t.Errorf("bets[0].Allocation after budget change = %v, want 60", got)
	}
	if got := snapshot.Bundles[0].Bets[1].Allocation; got != 140 {
		t.Errorf("bets[1].Allocation after budget change = %v, want 140", got)
	}

	t.Log("✓ Triggers applied")

	// 4. Audit trail, newest first
	events, err := sess.Events(ctx, 10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Trigger != storage.TriggerSetBudget {
		t.Errorf("events[0].Trigger = %q, want %q", events[0].Trigger, storage.TriggerSetBudget)
	}
	if events[1].Trigger != storage.TriggerSetAllocation {
		t.Errorf("events[1].Trigger = %q, want %q", events[1].Trigger, storage.TriggerSetAllocation)
	}

	t.Log("✓ Audit trail persisted")

	// 5. Catalog reads through the mock API
	list, err := application.catalog.ActiveMarkets(ctx, 10)
	if err != nil {
		t.Fatalf("ActiveMarkets() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("markets = %d, want 1", len(list))
	}

	t.Log("✓ Catalog reachable")
}

// TestE2E_SessionLifecycle exercises creation, watcher fan-out and deletion.
func TestE2E_SessionLifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	cfg := testConfig()
	cfg.StorageMode = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "events.db")

	application, err := New(cfg, logger, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	payload, _ := json.Marshal(testutil.Portfolio(testutil.Bundle("Energy", 50, testutil.Bet("601", 50, 0.5, 2))))

	p, err := application.loader.Load(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sess, err := application.sessions.Create(p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updates := sess.Subscribe()

	if _, err := sess.SetBudget(context.Background(), 75); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}

	select {
	case m := <-updates:
		if m.TotalBudget != 75 {
			t.Errorf("watcher total budget = %v, want 75", m.TotalBudget)
		}
	default:
		t.Fatal("watcher did not receive a metrics update")
	}

	t.Log("✓ Watcher received fan-out")

	if err := application.sessions.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok := <-updates; ok {
		t.Error("watcher channel open after delete, want closed")
	}

	if application.sessions.Len() != 0 {
		t.Errorf("sessions after delete = %d, want 0", application.sessions.Len())
	}

	t.Log("✓ Session deleted and watcher closed")
}

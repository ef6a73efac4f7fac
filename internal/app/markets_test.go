package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/testutil"
	"github.com/polyhedge/polyhedge/pkg/cache"
)

func TestWarmCatalog_PrimesCache(t *testing.T) {
	requests := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "["+testutil.GammaMarketJSON("1", "Will it rain?", 0.3)+"]")
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.GammaAPIURL = backend.URL

	application, err := New(cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	application.wg.Add(1)
	application.warmCatalog()

	if requests != 1 {
		t.Fatalf("warmup requests = %d, want 1", requests)
	}

	if rc, ok := application.marketCache.(*cache.RistrettoCache); ok {
		rc.Wait()
	}

	// The warmed listing must be served from the cache.
	list, err := application.catalog.ActiveMarkets(context.Background(), cfg.MarketsLimit)
	if err != nil {
		t.Fatalf("ActiveMarkets() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("markets = %d, want 1", len(list))
	}
	if requests != 1 {
		t.Errorf("requests after cached call = %d, want 1", requests)
	}
}

func TestWarmCatalog_FailsSoft(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.GammaAPIURL = backend.URL

	application, err := New(cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	// Must return without error; the catalog fetches on demand later.
	application.wg.Add(1)
	application.warmCatalog()
}

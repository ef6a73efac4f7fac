package app

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/storage"
	"github.com/polyhedge/polyhedge/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:             "info",
		HTTPPort:             "0",
		GammaAPIURL:          "http://127.0.0.1:1", // Never dialed unless a test warms the catalog
		MarketsLimit:         10,
		MarketsActiveTTL:     30 * time.Second,
		SessionLimit:         10,
		RiskVarianceScale:    400,
		RiskPortfolioWeight:  0.7,
		RiskIndividualWeight: 0.3,
		RiskNeutralPrice:     0.5,
		StorageMode:          "console",
	}
}

func TestNew_ConsoleMode(t *testing.T) {
	application, err := New(testConfig(), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	if application.httpServer == nil {
		t.Error("New() httpServer is nil")
	}
	if application.sessions == nil {
		t.Error("New() sessions is nil")
	}
	if application.loader == nil {
		t.Error("New() loader is nil")
	}
	if application.catalog == nil {
		t.Error("New() catalog is nil")
	}
	if application.healthChecker == nil {
		t.Error("New() healthChecker is nil")
	}
	if _, ok := application.store.(*storage.ConsoleStorage); !ok {
		t.Errorf("store = %T, want *storage.ConsoleStorage", application.store)
	}
}

func TestNew_SQLiteMode(t *testing.T) {
	cfg := testConfig()
	cfg.StorageMode = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "events.db")

	application, err := New(cfg, zap.NewNop(), &Options{Version: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer application.Shutdown()

	if _, ok := application.store.(*storage.SQLiteStorage); !ok {
		t.Errorf("store = %T, want *storage.SQLiteStorage", application.store)
	}
}

func TestApp_ShutdownBeforeRun(t *testing.T) {
	application, err := New(testConfig(), zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := application.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

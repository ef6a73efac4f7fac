package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ConsoleStorage implements EventStorage by pretty-printing to console.
// It retains nothing, so RecentEvents always comes back empty.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreEvent pretty-prints a rebalance event to console.
func (c *ConsoleStorage) StoreEvent(ctx context.Context, ev *RebalanceEvent) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🔄 REBALANCE EVENT APPLIED\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:       %s\n", ev.ID[:8])
	fmt.Printf("Session:  %s\n", ev.SessionID)
	fmt.Printf("Trigger:  %s\n", ev.Trigger)
	switch {
	case ev.BundleIndex < 0:
		fmt.Printf("Target:   portfolio\n")
	case ev.BetIndex < 0:
		fmt.Printf("Target:   bundle %d\n", ev.BundleIndex)
	default:
		fmt.Printf("Target:   bundle %d / bet %d\n", ev.BundleIndex, ev.BetIndex)
	}
	fmt.Printf("Value:    %.4f\n", ev.Value)
	fmt.Printf("Time:     %s\n", ev.OccurredAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 PORTFOLIO AFTER\n")
	fmt.Printf("  Budget:      $%.2f\n", ev.BudgetAfter)
	fmt.Printf("  Risk Score:  %.2f / 100\n", ev.RiskScoreAfter)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// RecentEvents is a no-op for console storage.
func (c *ConsoleStorage) RecentEvents(ctx context.Context, sessionID string, limit int) ([]RebalanceEvent, error) {
	return nil, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

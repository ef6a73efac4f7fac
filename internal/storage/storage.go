package storage

import (
	"context"
	"time"
)

// Trigger names recorded with each rebalance event.
const (
	TriggerSetAllocation = "set_allocation"
	TriggerSetMultiplier = "set_multiplier"
	TriggerSetBudget     = "set_budget"
	TriggerResetBundle   = "reset_bundle"
)

// RebalanceEvent is an audit record of a single applied rebalance trigger.
// BundleIndex and BetIndex are -1 when the trigger does not target that level
// (a budget rescale targets the whole portfolio, a bundle reset has no bet).
type RebalanceEvent struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Trigger        string    `json:"trigger"`
	BundleIndex    int       `json:"bundle_index"`
	BetIndex       int       `json:"bet_index"`
	Value          float64   `json:"value"`
	BudgetAfter    float64   `json:"budget_after"`
	RiskScoreAfter float64   `json:"risk_score_after"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventStorage is the interface for persisting rebalance events.
type EventStorage interface {
	// StoreEvent persists a single rebalance event.
	StoreEvent(ctx context.Context, ev *RebalanceEvent) error

	// RecentEvents returns the most recent events for a session,
	// newest first, at most limit rows.
	RecentEvents(ctx context.Context, sessionID string, limit int) ([]RebalanceEvent, error)

	// Close closes the storage connection.
	Close() error
}

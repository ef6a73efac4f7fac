package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rebalance_events (
    id               TEXT PRIMARY KEY,
    session_id       TEXT    NOT NULL,
    trigger_type     TEXT    NOT NULL,
    bundle_index     INTEGER NOT NULL,
    bet_index        INTEGER NOT NULL,
    value            REAL    NOT NULL,
    budget_after     REAL    NOT NULL,
    risk_score_after REAL    NOT NULL,
    occurred_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON rebalance_events(session_id, occurred_at DESC);
`

// timeLayout is RFC3339 with a fixed-width fraction so that text ordering
// of occurred_at matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage implements EventStorage using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	Path   string
	Logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database at the given path
// and applies the schema.
func NewSQLiteStorage(cfg *SQLiteConfig) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Info("sqlite-storage-opened",
		zap.String("path", cfg.Path))

	return &SQLiteStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreEvent stores a rebalance event in SQLite.
func (s *SQLiteStorage) StoreEvent(ctx context.Context, ev *RebalanceEvent) error {
	query := `
		INSERT INTO rebalance_events (
			id, session_id, trigger_type, bundle_index, bet_index,
			value, budget_after, risk_score_after, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID,
		ev.SessionID,
		ev.Trigger,
		ev.BundleIndex,
		ev.BetIndex,
		ev.Value,
		ev.BudgetAfter,
		ev.RiskScoreAfter,
		ev.OccurredAt.UTC().Format(timeLayout),
	)

	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	s.logger.Debug("rebalance-event-stored",
		zap.String("event-id", ev.ID),
		zap.String("session-id", ev.SessionID),
		zap.String("trigger", ev.Trigger))

	return nil
}

// RecentEvents returns the most recent events for a session, newest first.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, sessionID string, limit int) ([]RebalanceEvent, error) {
	query := `
		SELECT id, session_id, trigger_type, bundle_index, bet_index,
		       value, budget_after, risk_score_after, occurred_at
		FROM rebalance_events
		WHERE session_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []RebalanceEvent
	for rows.Next() {
		var ev RebalanceEvent
		var occurredAt string
		err := rows.Scan(
			&ev.ID,
			&ev.SessionID,
			&ev.Trigger,
			&ev.BundleIndex,
			&ev.BetIndex,
			&ev.Value,
			&ev.BudgetAfter,
			&ev.RiskScoreAfter,
			&occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing-sqlite-storage")
	return s.db.Close()
}

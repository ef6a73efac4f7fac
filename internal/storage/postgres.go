package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements EventStorage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreEvent stores a rebalance event in PostgreSQL.
func (p *PostgresStorage) StoreEvent(ctx context.Context, ev *RebalanceEvent) error {
	query := `
		INSERT INTO rebalance_events (
			id, session_id, trigger_type, bundle_index, bet_index,
			value, budget_after, risk_score_after, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		ev.ID,
		ev.SessionID,
		ev.Trigger,
		ev.BundleIndex,
		ev.BetIndex,
		ev.Value,
		ev.BudgetAfter,
		ev.RiskScoreAfter,
		ev.OccurredAt,
	)

	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	p.logger.Debug("rebalance-event-stored",
		zap.String("event-id", ev.ID),
		zap.String("session-id", ev.SessionID),
		zap.String("trigger", ev.Trigger))

	return nil
}

// RecentEvents returns the most recent events for a session, newest first.
func (p *PostgresStorage) RecentEvents(ctx context.Context, sessionID string, limit int) ([]RebalanceEvent, error) {
	query := `
		SELECT id, session_id, trigger_type, bundle_index, bet_index,
		       value, budget_after, risk_score_after, occurred_at
		FROM rebalance_events
		WHERE session_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []RebalanceEvent
	for rows.Next() {
		var ev RebalanceEvent
		err := rows.Scan(
			&ev.ID,
			&ev.SessionID,
			&ev.Trigger,
			&ev.BundleIndex,
			&ev.BetIndex,
			&ev.Value,
			&ev.BudgetAfter,
			&ev.RiskScoreAfter,
			&ev.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

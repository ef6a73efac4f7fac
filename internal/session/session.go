// Package session binds loaded portfolios to rebalancing engines. Each
// session owns one engine, a watcher fan-out for metrics pushes, and the
// audit trail hookup. Sessions live in memory only; working and pristine
// state die with the session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/internal/rebalance"
	"github.com/polyhedge/polyhedge/internal/storage"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrLimitReached = errors.New("session limit reached")
)

// DefaultLimit caps concurrent sessions when no limit is configured.
const DefaultLimit = 100

// watcherBuffer is the per-watcher channel depth. A full buffer drops the
// frame; a fresher snapshot follows on the next trigger.
const watcherBuffer = 8

// Config holds session manager configuration.
type Config struct {
	Limit      int
	Calculator *analytics.Calculator
	Storage    storage.EventStorage
	Logger     *zap.Logger
}

// Manager is the uuid-keyed registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
	calc     *analytics.Calculator
	store    storage.EventStorage
	logger   *zap.Logger
}

// NewManager creates a session manager. The event storage is shared across
// sessions and stays owned by the caller.
func NewManager(cfg Config) *Manager {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		limit:    limit,
		calc:     cfg.Calculator,
		store:    cfg.Storage,
		logger:   cfg.Logger,
	}

	m.logger.Info("session-manager-created", zap.Int("limit", limit))

	return m
}

// Create registers a new session around the given portfolio. The portfolio
// is cloned by the engine; the caller's copy is not retained.
func (m *Manager) Create(p portfolio.Portfolio) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.limit {
		m.logger.Warn("session-limit-reached", zap.Int("limit", m.limit))
		return nil, ErrLimitReached
	}

	id := uuid.NewString()
	engine := rebalance.New(rebalance.Config{
		ID:         id,
		Logger:     m.logger,
		Calculator: m.calc,
	}, p)

	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		engine:    engine,
		store:     m.store,
		logger:    m.logger,
		watchers:  make(map[chan analytics.PortfolioMetrics]struct{}),
	}
	m.sessions[id] = s

	SessionsCreatedTotal.Inc()
	SessionsActive.Set(float64(len(m.sessions)))

	m.logger.Info("session-created",
		zap.String("session-id", id),
		zap.Int("bundles", len(p.Bundles)),
		zap.Int("active-sessions", len(m.sessions)))

	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session and disconnects its watchers.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		SessionsActive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	s.closeWatchers()
	m.logger.Info("session-deleted", zap.String("session-id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close disconnects all watchers and empties the registry. The shared event
// storage is left open for the owner to close.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	SessionsActive.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.closeWatchers()
	}

	m.logger.Info("session-manager-closed", zap.Int("sessions", len(sessions)))
}

// Session wraps one rebalancing engine with metrics fan-out and audit
// recording. Trigger methods mirror the engine's; each applies the trigger,
// recomputes portfolio metrics, pushes them to watchers, and records an
// audit event best-effort.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine *rebalance.Engine
	store  storage.EventStorage
	logger *zap.Logger

	mu       sync.Mutex
	watchers map[chan analytics.PortfolioMetrics]struct{}
	closed   bool
}

// Metrics recomputes portfolio metrics from the session's working copy.
func (s *Session) Metrics() analytics.PortfolioMetrics {
	return s.engine.Metrics()
}

// Snapshot returns a deep copy of the session's working portfolio.
func (s *Session) Snapshot() portfolio.Portfolio {
	return s.engine.Snapshot()
}

// TargetBudget returns the session's current global budget preference.
func (s *Session) TargetBudget() float64 {
	return s.engine.TargetBudget()
}

// Events returns the most recent audit events for this session.
func (s *Session) Events(ctx context.Context, limit int) ([]storage.RebalanceEvent, error) {
	return s.store.RecentEvents(ctx, s.ID, limit)
}

// SetBetAllocation applies trigger A and returns the resulting metrics.
func (s *Session) SetBetAllocation(ctx context.Context, bundleIdx, betIdx int, value float64) (analytics.PortfolioMetrics, error) {
	if err := s.engine.SetBetAllocation(bundleIdx, betIdx, value); err != nil {
		return analytics.PortfolioMetrics{}, err
	}
	return s.finish(ctx, storage.TriggerSetAllocation, bundleIdx, betIdx, value), nil
}

// SetBetMultiplier updates one bet's payout multiplier and returns the
// resulting metrics.
func (s *Session) SetBetMultiplier(ctx context.Context, bundleIdx, betIdx int, value float64) (analytics.PortfolioMetrics, error) {
	if err := s.engine.SetBetMultiplier(bundleIdx, betIdx, value); err != nil {
		return analytics.PortfolioMetrics{}, err
	}
	return s.finish(ctx, storage.TriggerSetMultiplier, bundleIdx, betIdx, value), nil
}

// SetBudget applies trigger B and returns the resulting metrics.
func (s *Session) SetBudget(ctx context.Context, newBudget float64) (analytics.PortfolioMetrics, error) {
	if err := s.engine.SetBudget(newBudget); err != nil {
		return analytics.PortfolioMetrics{}, err
	}
	return s.finish(ctx, storage.TriggerSetBudget, -1, -1, newBudget), nil
}

// ResetBundle applies trigger C and returns the resulting metrics.
func (s *Session) ResetBundle(ctx context.Context, bundleIdx int) (analytics.PortfolioMetrics, error) {
	if err := s.engine.ResetBundle(bundleIdx); err != nil {
		return analytics.PortfolioMetrics{}, err
	}
	return s.finish(ctx, storage.TriggerResetBundle, bundleIdx, -1, 0), nil
}

// Subscribe registers a watcher channel fed after every accepted trigger.
// The channel is closed on Unsubscribe or when the session goes away.
func (s *Session) Subscribe() chan analytics.PortfolioMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan analytics.PortfolioMetrics, watcherBuffer)
	if s.closed {
		close(ch)
		return ch
	}

	s.watchers[ch] = struct{}{}
	WatchersActive.Inc()
	return ch
}

// Unsubscribe removes and closes a watcher channel.
func (s *Session) Unsubscribe(ch chan analytics.PortfolioMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[ch]; ok {
		delete(s.watchers, ch)
		close(ch)
		WatchersActive.Dec()
	}
}

// finish runs the post-trigger plumbing shared by all triggers: recompute
// metrics, fan out to watchers, record the audit event.
func (s *Session) finish(ctx context.Context, trigger string, bundleIdx, betIdx int, value float64) analytics.PortfolioMetrics {
	m := s.engine.Metrics()
	s.broadcast(m)
	s.record(ctx, trigger, bundleIdx, betIdx, value, m)
	return m
}

// broadcast pushes a metrics snapshot to every watcher without blocking.
func (s *Session) broadcast(m analytics.PortfolioMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.watchers {
		select {
		case ch <- m:
		default:
			UpdatesDroppedTotal.Inc()
		}
	}
}

// record persists an audit event. Storage failures never fail the trigger.
func (s *Session) record(ctx context.Context, trigger string, bundleIdx, betIdx int, value float64, m analytics.PortfolioMetrics) {
	ev := &storage.RebalanceEvent{
		ID:             uuid.NewString(),
		SessionID:      s.ID,
		Trigger:        trigger,
		BundleIndex:    bundleIdx,
		BetIndex:       betIdx,
		Value:          value,
		BudgetAfter:    m.TotalBudget,
		RiskScoreAfter: m.OverallRiskScore,
		OccurredAt:     time.Now().UTC(),
	}

	if err := s.store.StoreEvent(ctx, ev); err != nil {
		EventStoreFailuresTotal.Inc()
		s.logger.Warn("rebalance-event-store-failed",
			zap.String("session-id", s.ID),
			zap.String("trigger", trigger),
			zap.Error(err))
	}
}

// closeWatchers disconnects all watchers and refuses new subscriptions.
func (s *Session) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for ch := range s.watchers {
		close(ch)
		delete(s.watchers, ch)
		WatchersActive.Dec()
	}
}

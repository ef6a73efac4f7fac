package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/ingest"
	"github.com/polyhedge/polyhedge/internal/portfolio"
	"github.com/polyhedge/polyhedge/internal/rebalance"
	"github.com/polyhedge/polyhedge/internal/session"
	"github.com/polyhedge/polyhedge/internal/storage"
)

const defaultEventsLimit = 50

// PortfolioHandler handles the portfolio session API.
type PortfolioHandler struct {
	sessions *session.Manager
	loader   *ingest.Loader
	logger   *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler.
func NewPortfolioHandler(sessions *session.Manager, loader *ingest.Loader, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		sessions: sessions,
		loader:   loader,
		logger:   logger,
	}
}

// CreateResponse is returned when a portfolio session is opened.
type CreateResponse struct {
	SessionID string                     `json:"session_id"`
	Metrics   analytics.PortfolioMetrics `json:"metrics"`
}

// SessionResponse is the full working-state view of a session.
type SessionResponse struct {
	SessionID    string                     `json:"session_id"`
	CreatedAt    time.Time                  `json:"created_at"`
	TargetBudget float64                    `json:"target_budget"`
	Portfolio    portfolio.Portfolio        `json:"portfolio"`
	Metrics      analytics.PortfolioMetrics `json:"metrics"`
}

type budgetRequest struct {
	Budget float64 `json:"budget"`
}

type allocationRequest struct {
	Allocation float64 `json:"allocation"`
}

type multiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

// HandleCreate handles POST /api/v1/portfolios. The body is the upstream
// generation payload; it is validated and normalized before a session opens.
func (h *PortfolioHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := h.loader.Load(r.Body)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeError(w, h.logger, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeError(w, h.logger, "invalid portfolio payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Create(p)
	if err != nil {
		if errors.Is(err, session.ErrLimitReached) {
			writeError(w, h.logger, err.Error(), http.StatusTooManyRequests)
			return
		}
		writeError(w, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, CreateResponse{
		SessionID: sess.ID,
		Metrics:   sess.Metrics(),
	})
}

// HandleGet handles GET /api/v1/portfolios/{id}.
func (h *PortfolioHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, h.logger, http.StatusOK, SessionResponse{
		SessionID:    sess.ID,
		CreatedAt:    sess.CreatedAt,
		TargetBudget: sess.TargetBudget(),
		Portfolio:    sess.Snapshot(),
		Metrics:      sess.Metrics(),
	})
}

// HandleMetrics handles GET /api/v1/portfolios/{id}/metrics.
func (h *PortfolioHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, h.logger, http.StatusOK, sess.Metrics())
}

// HandleDelete handles DELETE /api/v1/portfolios/{id}.
func (h *PortfolioHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.sessions.Delete(id)
	if err != nil {
		writeError(w, h.logger, "session not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents handles GET /api/v1/portfolios/{id}/events?limit=N.
func (h *PortfolioHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := defaultEventsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, h.logger, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := sess.Events(r.Context(), limit)
	if err != nil {
		h.logger.Error("events-lookup-failed", zap.Error(err))
		writeError(w, h.logger, "failed to read events", http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []storage.RebalanceEvent{}
	}
	writeJSON(w, h.logger, http.StatusOK, events)
}

// HandleSetBudget handles PUT /api/v1/portfolios/{id}/budget.
func (h *PortfolioHandler) HandleSetBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req budgetRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, err := sess.SetBudget(r.Context(), req.Budget)
	if err != nil {
		h.writeTriggerError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, m)
}

// HandleSetAllocation handles
// PUT /api/v1/portfolios/{id}/bundles/{bundle}/bets/{bet}/allocation.
func (h *PortfolioHandler) HandleSetAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	bundleIdx, betIdx, ok := h.betPath(w, r)
	if !ok {
		return
	}

	var req allocationRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, err := sess.SetBetAllocation(r.Context(), bundleIdx, betIdx, req.Allocation)
	if err != nil {
		h.writeTriggerError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, m)
}

// HandleSetMultiplier handles
// PUT /api/v1/portfolios/{id}/bundles/{bundle}/bets/{bet}/multiplier.
func (h *PortfolioHandler) HandleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	bundleIdx, betIdx, ok := h.betPath(w, r)
	if !ok {
		return
	}

	var req multiplierRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, h.logger, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, err := sess.SetBetMultiplier(r.Context(), bundleIdx, betIdx, req.Multiplier)
	if err != nil {
		h.writeTriggerError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, m)
}

// HandleResetBundle handles POST /api/v1/portfolios/{id}/bundles/{bundle}/reset.
func (h *PortfolioHandler) HandleResetBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	bundleIdx, ok := h.indexParam(w, r, "bundle")
	if !ok {
		return
	}

	m, err := sess.ResetBundle(r.Context(), bundleIdx)
	if err != nil {
		h.writeTriggerError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, m)
}

// session resolves the {id} path parameter. A miss writes the 404 itself.
func (h *PortfolioHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")

	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, h.logger, "session not found", http.StatusNotFound)
		return nil, false
	}

	return sess, true
}

func (h *PortfolioHandler) indexParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, h.logger, name+" must be an integer", http.StatusBadRequest)
		return 0, false
	}

	return v, true
}

func (h *PortfolioHandler) betPath(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	bundleIdx, ok := h.indexParam(w, r, "bundle")
	if !ok {
		return 0, 0, false
	}

	betIdx, ok := h.indexParam(w, r, "bet")
	if !ok {
		return 0, 0, false
	}

	return bundleIdx, betIdx, true
}

// writeTriggerError maps engine errors onto status codes. Index errors are
// client mistakes; anything else is unexpected.
func (h *PortfolioHandler) writeTriggerError(w http.ResponseWriter, err error) {
	if errors.Is(err, rebalance.ErrBundleIndex) || errors.Is(err, rebalance.ErrBetIndex) {
		writeError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Error("trigger-failed", zap.Error(err))
	writeError(w, h.logger, err.Error(), http.StatusInternalServerError)
}

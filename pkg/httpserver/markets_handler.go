package httpserver

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/markets"
)

// MarketsHandler handles the market catalog passthrough.
type MarketsHandler struct {
	catalog      *markets.Catalog
	defaultLimit int
	logger       *zap.Logger
}

// NewMarketsHandler creates a new markets handler.
func NewMarketsHandler(catalog *markets.Catalog, defaultLimit int, logger *zap.Logger) *MarketsHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}

	return &MarketsHandler{
		catalog:      catalog,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// HandleList handles GET /api/v1/markets?limit=N. A limit of 0 fetches every
// active market.
func (h *MarketsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, h.logger, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.catalog.ActiveMarkets(r.Context(), limit)
	if err != nil {
		h.logger.Error("markets-listing-failed", zap.Error(err))
		writeError(w, h.logger, "failed to fetch markets", http.StatusBadGateway)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, list)
}

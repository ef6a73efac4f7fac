// Package httpserver exposes the portfolio session API, the market catalog
// passthrough, and the operational endpoints.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/ingest"
	"github.com/polyhedge/polyhedge/internal/markets"
	"github.com/polyhedge/polyhedge/internal/session"
	"github.com/polyhedge/polyhedge/pkg/healthprobe"
)

// Server provides the HTTP API plus metrics and health checks.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	CORSOrigins   []string
	MarketsLimit  int
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Sessions      *session.Manager
	Loader        *ingest.Loader
	Catalog       *markets.Catalog
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	var ph *PortfolioHandler
	if cfg.Sessions != nil && cfg.Loader != nil {
		ph = NewPortfolioHandler(cfg.Sessions, cfg.Loader, cfg.Logger)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/health", cfg.HealthChecker.Health())
		r.Get("/ready", cfg.HealthChecker.Ready())

		if ph != nil {
			r.Route("/api/v1/portfolios", func(r chi.Router) {
				r.Post("/", ph.HandleCreate)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", ph.HandleGet)
					r.Delete("/", ph.HandleDelete)
					r.Get("/metrics", ph.HandleMetrics)
					r.Get("/events", ph.HandleEvents)
					r.Put("/budget", ph.HandleSetBudget)
					r.Route("/bundles/{bundle}", func(r chi.Router) {
						r.Post("/reset", ph.HandleResetBundle)
						r.Put("/bets/{bet}/allocation", ph.HandleSetAllocation)
						r.Put("/bets/{bet}/multiplier", ph.HandleSetMultiplier)
					})
				})
			})
		}

		if cfg.Catalog != nil {
			mh := NewMarketsHandler(cfg.Catalog, cfg.MarketsLimit, cfg.Logger)
			r.Get("/api/v1/markets", mh.HandleList)
		}
	})

	// The stream lives outside the timeout group. A socket outlives any
	// request deadline.
	if ph != nil {
		r.Get("/api/v1/portfolios/{id}/stream", ph.HandleStream)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, message string, statusCode int) {
	writeJSON(w, logger, statusCode, ErrorResponse{Error: message})
}

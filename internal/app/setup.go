package app

import (
	"context"
	"fmt"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/ingest"
	"github.com/polyhedge/polyhedge/internal/markets"
	"github.com/polyhedge/polyhedge/internal/risk"
	"github.com/polyhedge/polyhedge/internal/session"
	"github.com/polyhedge/polyhedge/internal/storage"
	"github.com/polyhedge/polyhedge/pkg/cache"
	"github.com/polyhedge/polyhedge/pkg/config"
	"github.com/polyhedge/polyhedge/pkg/healthprobe"
	"github.com/polyhedge/polyhedge/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New(version)

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	catalog := setupCatalog(cfg, logger, marketCache)

	// Setup storage
	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	sessions := setupSessionManager(cfg, logger, store)
	loader := ingest.NewLoader(ingest.Config{Logger: logger})

	// Setup HTTP server (needs session manager, loader and catalog)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, sessions, loader, catalog)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		marketCache:   marketCache,
		catalog:       catalog,
		store:         store,
		sessions:      sessions,
		loader:        loader,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 market listings)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupCatalog(cfg *config.Config, logger *zap.Logger, marketCache cache.Cache) *markets.Catalog {
	client := markets.NewClient(markets.ClientConfig{
		BaseURL: cfg.GammaAPIURL,
		Logger:  logger,
	})

	return markets.NewCatalog(markets.CatalogConfig{
		Client:    client,
		Cache:     marketCache,
		ActiveTTL: cfg.MarketsActiveTTL,
		Logger:    logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.EventStorage, error) {
	switch cfg.StorageMode {
	case "postgres":
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil

	case "sqlite":
		sqliteStorage, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:   cfg.SQLitePath,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return sqliteStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupSessionManager(cfg *config.Config, logger *zap.Logger, store storage.EventStorage) *session.Manager {
	model := risk.NewModel(risk.Params{
		VarianceScale:    cfg.RiskVarianceScale,
		PortfolioWeight:  cfg.RiskPortfolioWeight,
		IndividualWeight: cfg.RiskIndividualWeight,
		NeutralPrice:     cfg.RiskNeutralPrice,
	})

	calc := analytics.NewCalculator(analytics.Config{
		Risk:   model,
		Logger: logger,
	})

	return session.NewManager(session.Config{
		Limit:      cfg.SessionLimit,
		Calculator: calc,
		Storage:    store,
		Logger:     logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	sessions *session.Manager,
	loader *ingest.Loader,
	catalog *markets.Catalog,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		CORSOrigins:   cfg.CORSOrigins,
		MarketsLimit:  cfg.MarketsLimit,
		Logger:        logger,
		HealthChecker: healthChecker,
		Sessions:      sessions,
		Loader:        loader,
		Catalog:       catalog,
	})
}

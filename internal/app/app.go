package app

import (
	"context"
	"sync"

	"github.com/polyhedge/polyhedge/internal/ingest"
	"github.com/polyhedge/polyhedge/internal/markets"
	"github.com/polyhedge/polyhedge/internal/session"
	"github.com/polyhedge/polyhedge/internal/storage"
	"github.com/polyhedge/polyhedge/pkg/cache"
	"github.com/polyhedge/polyhedge/pkg/config"
	"github.com/polyhedge/polyhedge/pkg/healthprobe"
	"github.com/polyhedge/polyhedge/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	marketCache   cache.Cache
	catalog       *markets.Catalog
	store         storage.EventStorage
	sessions      *session.Manager
	loader        *ingest.Loader
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	Version string // Reported by the health endpoint
}

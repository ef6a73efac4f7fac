package markets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/pkg/cache"
	"github.com/polyhedge/polyhedge/pkg/types"
)

const (
	// DefaultActiveTTL keeps active-market listings fresh enough for a UI.
	DefaultActiveTTL = 30 * time.Second

	// DefaultMarketTTL is long because single-market metadata barely changes.
	DefaultMarketTTL = 24 * time.Hour
)

// CatalogConfig holds catalog configuration.
type CatalogConfig struct {
	Client    *Client
	Cache     cache.Cache
	ActiveTTL time.Duration
	MarketTTL time.Duration
	Logger    *zap.Logger
}

// Catalog is a read-through cache over the Gamma client.
type Catalog struct {
	client    *Client
	cache     cache.Cache
	activeTTL time.Duration
	marketTTL time.Duration
	logger    *zap.Logger
}

// NewCatalog creates a new market catalog.
func NewCatalog(cfg CatalogConfig) *Catalog {
	activeTTL := cfg.ActiveTTL
	if activeTTL <= 0 {
		activeTTL = DefaultActiveTTL
	}
	marketTTL := cfg.MarketTTL
	if marketTTL <= 0 {
		marketTTL = DefaultMarketTTL
	}

	return &Catalog{
		client:    cfg.Client,
		cache:     cfg.Cache,
		activeTTL: activeTTL,
		marketTTL: marketTTL,
		logger:    cfg.Logger,
	}
}

// ActiveMarkets returns active markets, served from cache when fresh.
func (c *Catalog) ActiveMarkets(ctx context.Context, limit int) ([]types.Market, error) {
	cacheKey := fmt.Sprintf("markets:active:%d", limit)

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if markets, ok := cached.([]types.Market); ok {
				CatalogCacheHitsTotal.Inc()
				return markets, nil
			}
		}
		CatalogCacheMissesTotal.Inc()
	}

	markets, err := c.client.ActiveMarkets(ctx, limit, 0)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, markets, c.activeTTL)
	}

	return markets, nil
}

// MarketByID returns a single market, served from cache when available.
func (c *Catalog) MarketByID(ctx context.Context, id string) (*types.Market, error) {
	cacheKey := "markets:id:" + id

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if market, ok := cached.(*types.Market); ok {
				CatalogCacheHitsTotal.Inc()
				return market, nil
			}
		}
		CatalogCacheMissesTotal.Inc()
	}

	market, err := c.client.MarketByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, market, c.marketTTL)
	}

	return market, nil
}

package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// warmupTimeout bounds the startup catalog prefetch.
const warmupTimeout = 15 * time.Second

// warmCatalog primes the market catalog so the first listing request does
// not pay the upstream round trip. Failures are logged and ignored; the
// catalog falls back to fetching on demand.
func (a *App) warmCatalog() {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(a.ctx, warmupTimeout)
	defer cancel()

	list, err := a.catalog.ActiveMarkets(ctx, a.cfg.MarketsLimit)
	if err != nil {
		a.logger.Warn("catalog-warmup-failed", zap.Error(err))
		return
	}

	a.logger.Info("catalog-warmed", zap.Int("markets", len(list)))
}

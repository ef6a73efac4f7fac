package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchDuration tracks Gamma API fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyhedge_markets_fetch_duration_seconds",
		Help:    "Duration of market fetches from the Gamma API",
		Buckets: prometheus.DefBuckets,
	})

	// FetchErrorsTotal tracks Gamma API fetch failures.
	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_markets_fetch_errors_total",
		Help: "Total number of Gamma API fetch errors",
	})

	// CatalogCacheHitsTotal tracks catalog cache hits.
	CatalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_markets_catalog_cache_hits_total",
		Help: "Total number of market catalog cache hits",
	})

	// CatalogCacheMissesTotal tracks catalog cache misses.
	CatalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_markets_catalog_cache_misses_total",
		Help: "Total number of market catalog cache misses",
	})
)

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PortfoliosIngestedTotal tracks successfully normalized payloads.
	PortfoliosIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_ingest_portfolios_total",
		Help: "Total number of portfolio payloads accepted",
	})

	// RejectedTotal tracks rejected payloads by reason.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyhedge_ingest_rejected_total",
			Help: "Total number of portfolio payloads rejected",
		},
		[]string{"reason"},
	)

	// CoercionsTotal tracks fields repaired during normalization.
	CoercionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyhedge_ingest_coercions_total",
			Help: "Total number of field coercions applied during ingestion",
		},
		[]string{"field"},
	)
)

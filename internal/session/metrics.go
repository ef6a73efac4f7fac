package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks the number of live sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyhedge_sessions_active",
		Help: "Number of live portfolio sessions",
	})

	// SessionsCreatedTotal counts sessions created since start.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_sessions_created_total",
		Help: "Total number of portfolio sessions created",
	})

	// WatchersActive tracks subscribed metrics watchers across all sessions.
	WatchersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyhedge_session_watchers_active",
		Help: "Number of subscribed metrics watchers",
	})

	// UpdatesDroppedTotal counts metrics frames dropped on full watcher buffers.
	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_session_updates_dropped_total",
		Help: "Total metrics updates dropped because a watcher buffer was full",
	})

	// EventStoreFailuresTotal counts audit events that failed to persist.
	EventStoreFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyhedge_session_event_store_failures_total",
		Help: "Total audit events that could not be persisted",
	})
)

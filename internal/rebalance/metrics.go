package rebalance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for OperationsTotal.
const (
	triggerSetAllocation = "set_allocation"
	triggerSetMultiplier = "set_multiplier"
	triggerSetBudget     = "set_budget"
	triggerResetBundle   = "reset_bundle"

	resultApplied = "applied"
	resultNoop    = "noop"
	resultError   = "error"
)

var (
	// OperationsTotal tracks rebalancing triggers by type and result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyhedge_rebalance_operations_total",
			Help: "Total number of rebalancing operations by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	// OperationDurationSeconds tracks trigger latency.
	OperationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyhedge_rebalance_operation_duration_seconds",
		Help:    "Duration of a rebalancing trigger",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// AllocationDrift tracks the absolute rounding drift folded back into a
	// bundle by the normalization pass.
	AllocationDrift = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyhedge_rebalance_allocation_drift",
		Help:    "Absolute difference between allocation sum and budget before snapping",
		Buckets: []float64{1e-15, 1e-12, 1e-9, 1e-6, 1e-3, 1},
	})
)

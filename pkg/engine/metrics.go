package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stateChangesTotal counts accepted SetState calls by target state
	stateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsengine_state_changes_total",
		Help: "Total square state changes by target state",
	}, []string{"state"})

	// placementTogglesTotal counts placements switched on or off
	placementTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsengine_placement_toggles_total",
		Help: "Total placements enabled or disabled by board updates",
	}, []string{"direction"})

	// sinkTotal counts Sink and Raise calls by outcome
	sinkTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsengine_sink_operations_total",
		Help: "Total sink and raise operations by operation and result",
	}, []string{"operation", "result"})

	// updateDuration tracks incremental update latency
	updateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bsengine_update_duration_seconds",
		Help:    "Board update duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~260ms
	}, []string{"operation"})

	// placementsRegistered tracks placements created by AddShip
	placementsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bsengine_placements_registered_total",
		Help: "Total placements enumerated for registered ships",
	})
)

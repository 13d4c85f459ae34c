// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routelab_reconciles_total",
		Help: "Reconciliation runs by outcome.",
	}, []string{"status"})

	RouterOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routelab_router_ops_total",
		Help: "Per-router operations by kind and outcome.",
	}, []string{"op", "status"})

	PollCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routelab_poll_cycles_total",
		Help: "State poller cycles executed.",
	})

	ConvergenceSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "routelab_convergence_seconds",
		Help:    "Wall-clock time from reconciliation to predicate satisfaction.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	ScenarioStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routelab_scenario_steps_total",
		Help: "Scenario steps executed by kind and outcome.",
	}, []string{"kind", "status"})
)

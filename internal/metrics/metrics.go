package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drydock_cycle_duration_seconds",
		Help:    "Duration of a full update cycle (prune + stack phase + container phase).",
		Buckets: prometheus.DefBuckets,
	})
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drydock_cycles_total",
		Help: "Total number of update cycles run.",
	})
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drydock_updates_total",
		Help: "Total number of container update attempts by outcome (committed, rolled_back, abandoned).",
	}, []string{"outcome"})
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drydock_update_duration_seconds",
		Help:    "Duration of the per-container update state machine from BackupTagging to its terminal state.",
		Buckets: prometheus.DefBuckets,
	})
	StackRedeploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drydock_stack_redeploys_total",
		Help: "Total number of stack redeploy attempts by outcome (success, failed).",
	}, []string{"outcome"})
	PruneDeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drydock_prune_deletions_total",
		Help: "Total number of images deleted by the prune phase.",
	})
	PruneErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drydock_prune_errors_total",
		Help: "Total number of image deletions that failed during the prune phase.",
	})
	RegistryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drydock_registry_errors_total",
		Help: "Total number of registry/engine errors encountered while checking freshness, by kind.",
	}, []string{"kind"})
	ContainersObserved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "drydock_containers_observed",
		Help: "Number of containers observed in the most recent container phase.",
	})
)

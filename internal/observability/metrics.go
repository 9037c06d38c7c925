// Package observability provides Prometheus metrics for monitoring the
// aggregation core.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	ContractsCollected prometheus.Counter
	DuplicatesDropped  prometheus.Counter

	// Scheduler metrics
	TierRunsTotal  *prometheus.CounterVec
	NewContracts   prometheus.Counter
	SchedulerError *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg. A nil registerer
// uses a private registry, which keeps tests independent of process-wide
// metric state.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "fetches_total",
			Help:      "Total number of per-source fetch attempts by outcome",
		}, []string{"source", "outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of per-source fetches",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"source"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "cache_hits_total",
			Help:      "Total number of cache short-circuits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs by mode",
		}, []string{"mode"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "run_duration_seconds",
			Help:      "Wall time of aggregation runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ContractsCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "contracts_collected_total",
			Help:      "Total number of contracts returned across runs, after dedup",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "aggregate",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of duplicate contracts dropped by the dedup pass",
		}),
		TierRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "schedule",
			Name:      "tier_runs_total",
			Help:      "Total number of scheduled tier runs",
		}, []string{"tier"}),
		NewContracts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "schedule",
			Name:      "new_contracts_total",
			Help:      "Total number of previously-unseen contracts emitted to the callback",
		}),
		SchedulerError: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenderwatch",
			Subsystem: "schedule",
			Name:      "errors_total",
			Help:      "Total number of per-tier scheduler errors",
		}, []string{"tier"}),
	}
}

// ObserveFetch records one per-source fetch outcome.
func (m *Metrics) ObserveFetch(source, outcome string, d time.Duration) {
	m.FetchesTotal.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRun records one aggregation run.
func (m *Metrics) ObserveRun(mode string, d time.Duration, contracts, duplicates int) {
	m.RunsTotal.WithLabelValues(mode).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.ContractsCollected.Add(float64(contracts))
	m.DuplicatesDropped.Add(float64(duplicates))
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

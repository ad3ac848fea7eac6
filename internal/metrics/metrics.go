// Package metrics exposes prometheus instrumentation for reconciliation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	EntriesReported   *prometheus.CounterVec
	EntriesFree       prometheus.Counter
	EntriesBackfilled prometheus.Counter
	RunErrors         prometheus.Counter
	NegativeGaps      prometheus.Counter
	RunDuration       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntriesReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_entries_reported_total",
			Help: "Ledger entries submitted to the metering vendor.",
		}, []string{"tenant_id"}),
		EntriesFree: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_entries_free_total",
			Help: "Ledger entries absorbed by included allowances.",
		}),
		EntriesBackfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_entries_backfilled_total",
			Help: "Synthetic correction events emitted by backfill.",
		}),
		RunErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_run_errors_total",
			Help: "Per-entry and per-tenant reconciliation failures.",
		}),
		NegativeGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_negative_gaps_total",
			Help: "Periods where vendor usage exceeded the local ledger.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_run_duration_seconds",
			Help:    "Wall time of full reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EntriesReported,
		m.EntriesFree,
		m.EntriesBackfilled,
		m.RunErrors,
		m.NegativeGaps,
		m.RunDuration,
	)
	return m
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

// Module provides the prometheus registry and reconciliation metrics.
var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		provideRegisterer,
		New,
	),
)

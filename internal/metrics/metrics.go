// Package metrics exposes the broker's Prometheus collectors: pool
// registry activity, endpoint probing and the idle reclaimer.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry.
//
//	m := metrics.New(prometheus.NewRegistry())
//	m.Acquired("oracle", "pooled", metrics.ResultOK)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dbbroker"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCapacity = "capacity_exceeded"
	ResultSkipped  = "skipped"
)

// Metrics holds every collector the broker records to.
type Metrics struct {
	acquisitions     *prometheus.CounterVec // by db_type, mode, result
	sourcesCreated   *prometheus.CounterVec
	sourcesReclaimed *prometheus.CounterVec
	probeAttempts    *prometheus.CounterVec // by db_type, result
	pools            prometheus.Gauge
	sources          prometheus.Gauge
	reclaimerRunning prometheus.Gauge
	sweeps           prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		acquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_acquisitions_total",
			Help:      "Connections requested from the registry, by database type, mode and result.",
		}, []string{"db_type", "mode", "result"}),
		sourcesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_created_total",
			Help:      "Pooled connection sources created.",
		}, []string{"db_type"}),
		sourcesReclaimed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_reclaimed_total",
			Help:      "Pooled connection sources closed by the idle reclaimer or shutdown.",
		}, []string{"db_type"}),
		probeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_attempts_total",
			Help:      "Candidate endpoints tried by the prober, by database type and result.",
		}, []string{"db_type", "result"}),
		pools: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pools",
			Help:      "Endpoint pools currently registered.",
		}),
		sources: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources",
			Help:      "Connection sources currently registered across all pools.",
		}),
		reclaimerRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reclaimer_running",
			Help:      "1 while the idle reclaimer is running.",
		}),
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Idle sweeps performed.",
		}),
	}
}

// Acquired records one connection request. mode is "pooled" or "direct".
func (m *Metrics) Acquired(dbType, mode, result string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(dbType, mode, result).Inc()
}

func (m *Metrics) SourceCreated(dbType string) {
	if m == nil {
		return
	}
	m.sourcesCreated.WithLabelValues(dbType).Inc()
}

func (m *Metrics) SourceReclaimed(dbType string) {
	if m == nil {
		return
	}
	m.sourcesReclaimed.WithLabelValues(dbType).Inc()
}

func (m *Metrics) ProbeAttempt(dbType, result string) {
	if m == nil {
		return
	}
	m.probeAttempts.WithLabelValues(dbType, result).Inc()
}

// RegistrySize sets the pool and source gauges.
func (m *Metrics) RegistrySize(pools, sources int) {
	if m == nil {
		return
	}
	m.pools.Set(float64(pools))
	m.sources.Set(float64(sources))
}

func (m *Metrics) ReclaimerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.reclaimerRunning.Set(1)
		return
	}
	m.reclaimerRunning.Set(0)
}

func (m *Metrics) Swept() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

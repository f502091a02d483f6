// Package metrics exposes the daemon's Prometheus instruments. Every method is
// safe to call on a nil *Metrics so callers never need to check whether
// metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lookup engine and its control plane.
type Metrics struct {
	// Control operations by command and outcome
	ControlOps *prometheus.CounterVec

	// Control operation latency by command
	ControlLatency *prometheus.HistogramVec

	// Rows read by the last successful reload of each domain
	SnapshotRecords *prometheus.GaugeVec

	// Generation currently published per domain
	SnapshotGeneration *prometheus.GaugeVec

	// Retired snapshots freed, by domain
	Reclaimed *prometheus.CounterVec

	// Retired snapshots still pinned by readers
	RetiredPending prometheus.Gauge

	// Reader lookups by domain and result
	Lookups *prometheus.CounterVec
}

// New registers every instrument with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ControlOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callfwd_control_operations_total",
			Help: "Control operations by command and outcome",
		}, []string{"cmd", "status"}), // status: "success", "failure"

		ControlLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callfwd_control_operation_duration_seconds",
			Help:    "Duration of control operations by command",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"cmd"}),

		SnapshotRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callfwd_snapshot_records",
			Help: "Records in the currently published snapshot by domain",
		}, []string{"domain"}),

		SnapshotGeneration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callfwd_snapshot_generation",
			Help: "Generation of the currently published snapshot by domain",
		}, []string{"domain"}),

		Reclaimed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callfwd_snapshots_reclaimed_total",
			Help: "Retired snapshots whose storage was released",
		}, []string{"domain"}),

		RetiredPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "callfwd_snapshots_retired_pending",
			Help: "Retired snapshots still observed by at least one reader",
		}),

		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callfwd_lookups_total",
			Help: "Reader lookups by domain and result",
		}, []string{"domain", "result"}), // result: "hit", "miss", "unavailable"
	}
}

// ObserveControl records one finished control operation.
func (m *Metrics) ObserveControl(cmd string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.ControlOps.WithLabelValues(cmd, status).Inc()
	m.ControlLatency.WithLabelValues(cmd).Observe(d.Seconds())
}

// SetSnapshot records the size and generation of a newly published snapshot.
func (m *Metrics) SetSnapshot(domain string, records int, generation uint64) {
	if m != nil {
		m.SnapshotRecords.WithLabelValues(domain).Set(float64(records))
		m.SnapshotGeneration.WithLabelValues(domain).Set(float64(generation))
	}
}

// IncrementReclaimed records a freed generation of domain.
func (m *Metrics) IncrementReclaimed(domain string) {
	if m != nil {
		m.Reclaimed.WithLabelValues(domain).Inc()
	}
}

// SetRetiredPending records how many retired snapshots await reclamation.
func (m *Metrics) SetRetiredPending(n int) {
	if m != nil {
		m.RetiredPending.Set(float64(n))
	}
}

// AddLookups records n lookups against domain with the given result.
func (m *Metrics) AddLookups(domain, result string, n int) {
	if m != nil && n > 0 {
		m.Lookups.WithLabelValues(domain, result).Add(float64(n))
	}
}

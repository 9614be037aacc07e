package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write outcomes used as the "result" label
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds Prometheus metrics for the SSH record store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Writes              *prometheus.CounterVec
	WriteDuration       prometheus.Histogram
	Connections         prometheus.Counter
	ConfigurationErrors prometheus.Counter
	CleanupFailures     prometheus.Counter
	PendingAuditWrites  prometheus.Gauge
}

// New registers the record store metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sshrecord_writes_total",
			Help: "Total number of SSH issuance record writes by result",
		}, []string{"result"}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sshrecord_write_duration_seconds",
			Help:    "Time taken to write an SSH issuance record to the storage engine",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "sshrecord_connections_total",
			Help: "Total number of record store connections handed out",
		}),
		ConfigurationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sshrecord_configuration_errors_total",
			Help: "Total number of connection requests rejected for configuration errors",
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sshrecord_cleanup_failures_total",
			Help: "Total number of swallowed failures while clearing pooled connections",
		}),
		PendingAuditWrites: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sshrecord_pending_audit_writes",
			Help: "Issuance records queued off the signing path and not yet written",
		}),
	}
}

// ObserveWrite records one write attempt and its latency
func (m *Metrics) ObserveWrite(result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(result).Inc()
	m.WriteDuration.Observe(durationSeconds)
}

// IncConnections increments the handed-out connections counter
func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

// IncConfigurationErrors increments the configuration error counter
func (m *Metrics) IncConfigurationErrors() {
	if m == nil {
		return
	}
	m.ConfigurationErrors.Inc()
}

// IncCleanupFailures increments the swallowed cleanup failures counter
func (m *Metrics) IncCleanupFailures() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}

// IncPendingAuditWrites marks one audit write queued off the signing path
func (m *Metrics) IncPendingAuditWrites() {
	if m == nil {
		return
	}
	m.PendingAuditWrites.Inc()
}

// DecPendingAuditWrites marks one queued audit write finished
func (m *Metrics) DecPendingAuditWrites() {
	if m == nil {
		return
	}
	m.PendingAuditWrites.Dec()
}

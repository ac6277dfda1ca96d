// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is used when NewMetrics receives an empty namespace.
const DefaultNamespace = "report_assembler"

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Ledger metrics
	UploadsRecorded *prometheus.CounterVec

	// Snapshot metrics
	SnapshotSelections *prometheus.CounterVec
	SnapshotSkipped    *prometheus.CounterVec

	// Readiness metrics
	ReadinessChecks *prometheus.CounterVec
	AliasStatuses   *prometheus.CounterVec

	// Runner metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	ModuleRunsTotal  *prometheus.CounterVec
	ModuleDuration   *prometheus.HistogramVec
	VariablesWritten *prometheus.CounterVec
	RunsRejected     *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers nothing, which keeps tests isolated.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		UploadsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "uploads_recorded_total",
			Help:      "Total number of uploads appended to the ledger by alias",
		}, []string{"alias"}),

		SnapshotSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "selections_total",
			Help:      "Snapshot selections by outcome (nearest, fallback, empty)",
		}, []string{"alias", "outcome"}),
		SnapshotSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "candidates_skipped_total",
			Help:      "Upload candidates skipped because their dataset was empty or missing",
		}, []string{"alias"}),

		ReadinessChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readiness",
			Name:      "checks_total",
			Help:      "Readiness checks by report and result",
		}, []string{"report", "result"}),
		AliasStatuses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readiness",
			Name:      "alias_status_total",
			Help:      "Per-alias readiness classifications",
		}, []string{"report", "status"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Report runs by final state",
		}, []string{"report", "state"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Duration of report runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"report"}),
		ModuleRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "module_runs_total",
			Help:      "Module executions by status",
		}, []string{"report", "module", "status"}),
		ModuleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "module_duration_seconds",
			Help:      "Duration of module executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module"}),
		VariablesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifacts",
			Name:      "variables_written_total",
			Help:      "Report variables written by report",
		}, []string{"report"}),
		RunsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_rejected_total",
			Help:      "Runs rejected because another run of the report was in progress",
		}, []string{"report"}),

		LastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last completed run per report",
		}, []string{"report"}),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordUpload(alias string) {
	if m == nil {
		return
	}
	m.UploadsRecorded.WithLabelValues(alias).Inc()
}

// RecordSnapshot records one selection. skipped is the number of empty candidates passed over.
func (m *Metrics) RecordSnapshot(alias, outcome string, skipped int) {
	if m == nil {
		return
	}
	m.SnapshotSelections.WithLabelValues(alias, outcome).Inc()
	if skipped > 0 {
		m.SnapshotSkipped.WithLabelValues(alias).Add(float64(skipped))
	}
}

func (m *Metrics) RecordReadiness(report string, ready bool) {
	if m == nil {
		return
	}
	result := "ready"
	if !ready {
		result = "not_ready"
	}
	m.ReadinessChecks.WithLabelValues(report, result).Inc()
}

func (m *Metrics) RecordAliasStatus(report, status string) {
	if m == nil {
		return
	}
	m.AliasStatuses.WithLabelValues(report, status).Inc()
}

func (m *Metrics) RecordRun(report, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(report, state).Inc()
	m.RunDuration.WithLabelValues(report).Observe(d.Seconds())
}

func (m *Metrics) RecordModule(report, module, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModuleRunsTotal.WithLabelValues(report, module, status).Inc()
	m.ModuleDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (m *Metrics) RecordVariableWritten(report string) {
	if m == nil {
		return
	}
	m.VariablesWritten.WithLabelValues(report).Inc()
}

func (m *Metrics) RecordRunRejected(report string) {
	if m == nil {
		return
	}
	m.RunsRejected.WithLabelValues(report).Inc()
}

// MarkRunSucceeded sets the last-successful-run gauge for report to t.
func (m *Metrics) MarkRunSucceeded(report string, t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessfulRun.WithLabelValues(report).Set(float64(t.Unix()))
}

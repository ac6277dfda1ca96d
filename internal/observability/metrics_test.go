package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordUpload("sales")
	m.RecordUpload("sales")
	m.RecordSnapshot("sales", "fallback", 2)
	m.RecordReadiness("Q_TEST", false)
	m.RecordRun("Q_TEST", "done", 1500*time.Millisecond)
	m.RecordModule("Q_TEST", "totals", "failed", time.Second)
	m.RecordVariableWritten("Q_TEST")
	m.RecordRunRejected("Q_TEST")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadsRecorded.WithLabelValues("sales")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotSelections.WithLabelValues("sales", "fallback")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotSkipped.WithLabelValues("sales")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadinessChecks.WithLabelValues("Q_TEST", "not_ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("Q_TEST", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleRunsTotal.WithLabelValues("Q_TEST", "totals", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VariablesWritten.WithLabelValues("Q_TEST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsRejected.WithLabelValues("Q_TEST")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordUpload("a")
		m.RecordSnapshot("a", "nearest", 0)
		m.RecordReadiness("r", true)
		m.RecordAliasStatus("r", "FRESH")
		m.RecordRun("r", "done", time.Second)
		m.RecordModule("r", "m", "ok", time.Second)
		m.RecordVariableWritten("r")
		m.RecordRunRejected("r")
		m.MarkRunSucceeded("r", time.Now())
	})
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)
	m.RecordUpload("sales")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "report_assembler_ledger_uploads_recorded_total"))
}

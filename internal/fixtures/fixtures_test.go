package fixtures

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/params"
	"report-assembler/internal/readiness"
	"report-assembler/internal/runner"
	"report-assembler/internal/sections"
	"report-assembler/internal/snapshot"
	"report-assembler/internal/storage/memory"
)

func TestLoad_DemoReportRuns(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	s := Stores{
		Uploads:     memory.NewUploadLedgerStore(),
		Freshness:   memory.NewAliasFreshnessStore(),
		Definitions: memory.NewReportDefinitionStore(),
		Params:      memory.NewReportParamStore(),
		Datasets:    memory.NewDatasetStore(),
	}
	require.NoError(t, Load(ctx, s, cutoff))

	vars := memory.NewVariableStore()
	reg := runner.NewRegistry()
	require.NoError(t, sections.Register(reg))

	r, err := runner.New(runner.Options{
		Definitions: s.Definitions,
		Readiness:   readiness.New(s.Definitions, s.Uploads, nil, nil),
		Snapshots:   snapshot.New(s.Uploads, s.Datasets, nil, nil),
		Artifacts:   artifacts.New(vars),
		Params:      params.New(s.Params),
		Registry:    reg,
	})
	require.NoError(t, err)

	summary, err := r.Run(ctx, runner.RunRequest{Report: DemoReport, Cutoff: cutoff})
	require.NoError(t, err)
	assert.Equal(t, runner.StateDone, summary.State)
	assert.Empty(t, summary.Failed())
	assert.Len(t, summary.Succeeded(), 3)

	v, err := vars.Get(ctx, DemoReport, "totals_sales")
	require.NoError(t, err)

	var totals struct {
		PhysicalTable string                     `json:"physical_table"`
		RowsInScope   int                        `json:"rows_in_scope"`
		Totals        map[string]decimal.Decimal `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(v.Value, &totals))

	// The empty re-upload is skipped; January through April are in scope.
	assert.Equal(t, "sales_20240515_a", totals.PhysicalTable)
	assert.Equal(t, 4, totals.RowsInScope)
	assert.True(t, decimal.RequireFromString("4746.50").Equal(totals.Totals["amount"]), totals.Totals["amount"].String())
}

func TestLoad_FreshnessPointsAtLatest(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	s := Stores{
		Uploads:     memory.NewUploadLedgerStore(),
		Freshness:   memory.NewAliasFreshnessStore(),
		Definitions: memory.NewReportDefinitionStore(),
		Params:      memory.NewReportParamStore(),
		Datasets:    memory.NewDatasetStore(),
	}
	require.NoError(t, Load(ctx, s, cutoff))

	f, err := s.Freshness.Get(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales_20240515_b", f.PhysicalTable)

	events, err := s.Uploads.ListByReport(ctx, DemoReport)
	require.NoError(t, err)
	assert.Len(t, events, 4)

	// Second load appends again but datasets collide.
	assert.Error(t, Load(ctx, s, cutoff))
}

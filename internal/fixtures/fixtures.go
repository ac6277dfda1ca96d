// Package fixtures seeds a demo report so the commands can run without
// an ingestion pipeline.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"report-assembler/internal/domain"
	"report-assembler/internal/params"
	"report-assembler/internal/period"
	"report-assembler/internal/sections"
	"report-assembler/internal/storage"
)

// DemoReport is the name of the seeded report.
const DemoReport = "Quarterly_Report"

// Stores groups the stores the fixtures write to.
type Stores struct {
	Uploads     storage.UploadLedgerStore
	Freshness   storage.AliasFreshnessStore
	Definitions storage.ReportDefinitionStore
	Params      storage.ReportParamStore
	Datasets    storage.DatasetStore
}

// Load seeds DemoReport with definitions, parameters and uploads placed
// around cutoff:
//
//   - sales: a full upload two days before cutoff and an empty re-upload one
//     day before, so the snapshot falls back to the older one
//   - costs: one upload five days before cutoff
//   - fx: optional, presence policy, uploaded long ago
//
// Load is not idempotent: uploads are appended to the ledger.
func Load(ctx context.Context, s Stores, cutoff time.Time) error {
	if err := loadDefinitions(ctx, s.Definitions); err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	if err := loadParams(ctx, s.Params); err != nil {
		return fmt.Errorf("load params: %w", err)
	}
	if err := loadUploads(ctx, s, cutoff); err != nil {
		return fmt.Errorf("load uploads: %w", err)
	}
	return nil
}

func loadDefinitions(ctx context.Context, store storage.ReportDefinitionStore) error {
	tables := []*domain.RequiredTable{
		{ReportName: DemoReport, Alias: "sales", Required: true, ExpectedCutoffPolicy: domain.PolicyTolerance},
		{ReportName: DemoReport, Alias: "costs", Required: true, ExpectedCutoffPolicy: domain.PolicyTolerance},
		{ReportName: DemoReport, Alias: "fx", Required: false, ExpectedCutoffPolicy: domain.PolicyPresence},
	}
	for _, rt := range tables {
		if err := store.PutRequiredTable(ctx, rt); err != nil {
			return err
		}
	}

	modules := []*domain.ReportModule{
		{ReportName: DemoReport, ModuleName: sections.WindowSummary, RunOrder: 10, Enabled: true},
		{ReportName: DemoReport, ModuleName: sections.UploadOverview, RunOrder: 20, Enabled: true},
		{ReportName: DemoReport, ModuleName: sections.ColumnTotals, RunOrder: 30, Enabled: true},
	}
	for _, m := range modules {
		if err := store.PutModule(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func loadParams(ctx context.Context, store storage.ReportParamStore) error {
	p := params.New(store)

	values := map[string]any{
		params.KeyCurrency:   "EUR",
		params.KeyDateColumn: "date",
		params.KeyTotalColumns: []sections.TotalSpec{
			{Alias: "sales", Columns: []string{"amount"}},
			{Alias: "costs", Columns: []string{"amount", "tax"}},
		},
		params.KeyTableColors: map[string]string{
			"header": "#1F4E79",
			"stripe": "#DDEBF7",
		},
	}
	for key, value := range values {
		if err := p.Set(ctx, DemoReport, key, value); err != nil {
			return err
		}
	}
	return nil
}

type upload struct {
	alias string
	at    time.Time
	ds    *domain.Dataset
}

func loadUploads(ctx context.Context, s Stores, cutoff time.Time) error {
	w := period.Compute(cutoff)
	stamp := cutoff.UTC().Format("20060102")

	uploads := []upload{
		{"fx", cutoff.AddDate(0, 0, -120), &domain.Dataset{
			Locator: "fx_" + stamp + "_a",
			Columns: []string{"currency", "rate"},
			Rows: []domain.Row{
				{"currency": "USD", "rate": "1.0850"},
				{"currency": "GBP", "rate": "0.8560"},
			},
		}},
		{"costs", cutoff.AddDate(0, 0, -5), &domain.Dataset{
			Locator: "costs_" + stamp + "_a",
			Columns: []string{"date", "amount", "tax"},
			Rows:    monthlyRows(w, []string{"310.20", "295.80", "402.00", "388.45"}, true),
		}},
		{"sales", cutoff.AddDate(0, 0, -2), &domain.Dataset{
			Locator: "sales_" + stamp + "_a",
			Columns: []string{"date", "amount"},
			Rows:    monthlyRows(w, []string{"1,250.50", "980.25", "1,410.00", "1,105.75"}, false),
		}},
		{"sales", cutoff.AddDate(0, 0, -1), &domain.Dataset{
			Locator: "sales_" + stamp + "_b",
			Columns: []string{"date", "amount"},
		}},
	}

	for _, u := range uploads {
		if err := s.Datasets.Save(ctx, u.ds); err != nil {
			return fmt.Errorf("save dataset %s: %w", u.ds.Locator, err)
		}
		e := &domain.UploadEvent{
			Alias:         u.alias,
			ReportName:    DemoReport,
			UploadedAt:    u.at.UTC(),
			PhysicalTable: u.ds.Locator,
			RowCount:      u.ds.Len(),
			ColCount:      len(u.ds.Columns),
		}
		if err := s.Uploads.Append(ctx, e); err != nil {
			return fmt.Errorf("append upload %s: %w", u.ds.Locator, err)
		}
		if err := s.Freshness.Upsert(ctx, &domain.AliasFreshness{
			Alias:         e.Alias,
			ReportName:    e.ReportName,
			PhysicalTable: e.PhysicalTable,
			LastLoadedAt:  e.UploadedAt,
		}); err != nil {
			return fmt.Errorf("update freshness %s: %w", e.Alias, err)
		}
	}
	return nil
}

// monthlyRows returns one row per month in scope, cycling through amounts,
// plus one row dated the year before, which is outside every window.
func monthlyRows(w period.Window, amounts []string, withTax bool) []domain.Row {
	rows := make([]domain.Row, 0, len(w.MonthsInScope)+1)
	for i, m := range w.MonthsInScope {
		row := domain.Row{
			"date":   time.Date(w.EpochYear, m, 15, 0, 0, 0, 0, time.UTC).Format(time.DateOnly),
			"amount": amounts[i%len(amounts)],
		}
		if withTax {
			row["tax"] = "12.50"
		}
		rows = append(rows, row)
	}

	old := domain.Row{
		"date":   time.Date(w.EpochYear-1, time.December, 31, 0, 0, 0, 0, time.UTC).Format(time.DateOnly),
		"amount": "9,999.99",
	}
	if withTax {
		old["tax"] = "99.99"
	}
	return append(rows, old)
}

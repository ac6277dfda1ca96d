package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/domain"
	"report-assembler/internal/period"
	"report-assembler/internal/readiness"
	"report-assembler/internal/runner"
	"report-assembler/internal/storage/memory"
)

var (
	fixedNow = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	cutoff   = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
)

func testSummary() *runner.RunSummary {
	last := cutoff.AddDate(0, 0, -2)
	return &runner.RunSummary{
		RunID:         "run-1",
		Report:        "Q_TEST",
		Cutoff:        cutoff,
		Window:        period.Compute(cutoff),
		ToleranceDays: 30,
		State:         runner.StateDone,
		Ready:         true,
		Readiness: &readiness.Result{
			Report: "Q_TEST", Cutoff: cutoff, ToleranceDays: 30, Ready: true,
			Aliases: []readiness.AliasStatus{
				{Alias: "sales", Status: readiness.StatusFresh, LastUpload: &last, PhysicalTable: "sales_v1"},
			},
		},
		Modules: []runner.ModuleResult{
			{Name: "totals", RunOrder: 1, Status: runner.ModuleOK, Variables: []string{"total_sales"}, Duration: 1500 * time.Millisecond},
			{Name: "broken", RunOrder: 2, Status: runner.ModuleFailed, Error: "boom | bang\nline2"},
		},
		StartedAt:  fixedNow,
		FinishedAt: fixedNow.Add(2 * time.Second),
	}
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	store := artifacts.New(memory.NewVariableStore(), artifacts.WithClock(func() time.Time { return fixedNow }))
	_, err := store.PutVariable(context.Background(), artifacts.PutRequest{
		Report: "Q_TEST", Module: "totals", VarName: "total_sales", Value: map[string]any{"amount": "1,200.50"},
	})
	if err != nil {
		t.Fatalf("PutVariable failed: %v", err)
	}
	return NewGenerator(store).WithClock(func() time.Time { return fixedNow })
}

func TestGenerate(t *testing.T) {
	r, err := testGenerator(t).Generate(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixedNow)
	}
	if len(r.Variables) != 1 || r.Variables[0].VarName != "total_sales" {
		t.Fatalf("unexpected variables: %+v", r.Variables)
	}
	c := r.Counts()
	if c.OK != 1 || c.Failed != 1 || c.Skipped != 0 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

type failingLister struct{}

func (failingLister) Status(context.Context, string) ([]artifacts.VariableStatus, error) {
	return nil, errors.New("db down")
}

func TestGenerate_Errors(t *testing.T) {
	g := NewGenerator(failingLister{})
	if _, err := g.Generate(context.Background(), testSummary()); err == nil {
		t.Error("expected lister error")
	}
	if _, err := g.Generate(context.Background(), nil); err == nil {
		t.Error("expected error for nil summary")
	}
}

func TestRenderMarkdown(t *testing.T) {
	r, err := testGenerator(t).Generate(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Q_TEST",
		"Generated: 2024-05-20T08:00:00Z",
		"| Period | Q2 2024 (2024-01-01 to 2024-06-30) |",
		"| State | DONE |",
		"| sales | FRESH |",
		"OK: 1 | Failed: 1 | Skipped: 0",
		"| 1 | totals | OK | total_sales | 1.5s |",
		`boom \| bang line2`,
		"| total_sales | totals | total_sales | 0 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_Aborted(t *testing.T) {
	s := testSummary()
	s.State = runner.StateAborted
	s.AbortReason = "not ready: costs: MISSING (never uploaded)"
	s.Readiness = nil
	s.Modules = nil

	md := RenderMarkdown(&Report{GeneratedAt: fixedNow, Summary: s})
	for _, want := range []string{"**Aborted:** not ready: costs: MISSING", "Readiness was not checked.", "No modules.", "No variables stored."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderReadinessMarkdown(t *testing.T) {
	last := cutoff.AddDate(0, -3, 0)
	res := &readiness.Result{
		Report: "Q_TEST", Cutoff: cutoff, ToleranceDays: 30,
		Aliases: []readiness.AliasStatus{
			{Alias: "costs", Status: readiness.StatusMissing, Policy: domain.PolicyTolerance},
			{Alias: "sales", Status: readiness.StatusTooOld, LastUpload: &last, Threshold: cutoff.AddDate(0, 0, -30)},
		},
	}

	md := RenderReadinessMarkdown(res)
	if !strings.Contains(md, "| costs | MISSING | tolerance | - |") {
		t.Errorf("missing alias row:\n%s", md)
	}
	if !strings.Contains(md, "**Not ready:** costs: MISSING (never uploaded); sales: TOO_OLD") {
		t.Errorf("missing reason:\n%s", md)
	}

	md = RenderReadinessMarkdown(&readiness.Result{Report: "EMPTY", Cutoff: cutoff, Ready: true})
	if !strings.Contains(md, "No required tables.") || !strings.Contains(md, "**Ready.**") {
		t.Errorf("unexpected vacuous output:\n%s", md)
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV([]artifacts.VariableStatus{
		{VarName: "total", Module: "m", Anchor: "TOTAL", CreatedAt: fixedNow, AgeDays: 2, Preview: `{"a":"1,2"}`},
	})
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	if records[1][6] != `{"a":"1,2"}` {
		t.Errorf("preview = %q", records[1][6])
	}
	if records[1][3] != "2024-05-20T08:00:00Z" {
		t.Errorf("created_at = %q", records[1][3])
	}
}

func TestRenderModulesCSV(t *testing.T) {
	out, err := RenderModulesCSV(testSummary())
	if err != nil {
		t.Fatalf("RenderModulesCSV failed: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1][3] != "totals" || records[1][6] != "1500" {
		t.Errorf("unexpected first module row: %v", records[1])
	}
	if records[2][4] != "FAILED" {
		t.Errorf("unexpected status: %v", records[2])
	}
}

func TestWriteWorkbook(t *testing.T) {
	r, err := testGenerator(t).Generate(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, r); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SheetRun, SheetReadiness, SheetModules, SheetVariables}
	if strings.Join(sheets, ",") != strings.Join(want, ",") {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}

	if v, _ := f.GetCellValue(SheetRun, "B1"); v != "Value" {
		t.Errorf("Run!B1 = %q", v)
	}
	if v, _ := f.GetCellValue(SheetRun, "B2"); v != "Q_TEST" {
		t.Errorf("Run!B2 = %q", v)
	}
	if v, _ := f.GetCellValue(SheetModules, "B3"); v != "broken" {
		t.Errorf("Modules!B3 = %q", v)
	}
	if v, _ := f.GetCellValue(SheetReadiness, "E2"); v != "sales_v1" {
		t.Errorf("Readiness!E2 = %q", v)
	}
	if v, _ := f.GetCellValue(SheetVariables, "A2"); v != "total_sales" {
		t.Errorf("Variables!A2 = %q", v)
	}
}

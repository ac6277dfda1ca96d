package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetRun       = "Run"
	SheetReadiness = "Readiness"
	SheetModules   = "Modules"
	SheetVariables = "Variables"
)

// WriteWorkbook writes the report as an xlsx workbook to w.
func WriteWorkbook(w io.Writer, r *Report) error {
	f, err := BuildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// BuildWorkbook lays the report out over one sheet per section.
func BuildWorkbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	s := r.Summary

	// excelize starts with "Sheet1".
	if err := f.SetSheetName("Sheet1", SheetRun); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetReadiness, SheetModules, SheetVariables} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	run := [][]any{
		{"Report", s.Report},
		{"Run ID", s.RunID},
		{"Cutoff", s.Cutoff.Format(time.DateOnly)},
		{"Period", s.Window.Label()},
		{"Period start", s.Window.PeriodStart.Format(time.DateOnly)},
		{"Period end", s.Window.PeriodEnd.Format(time.DateOnly)},
		{"Tolerance days", s.ToleranceDays},
		{"State", string(s.State)},
		{"Abort reason", s.AbortReason},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
	}

	var readiness [][]any
	if s.Readiness != nil {
		for _, a := range s.Readiness.Aliases {
			last := ""
			if a.LastUpload != nil {
				last = a.LastUpload.Format(time.DateTime)
			}
			readiness = append(readiness, []any{a.Alias, string(a.Status), string(a.Policy), last, a.PhysicalTable})
		}
	}

	modules := make([][]any, 0, len(s.Modules))
	for _, m := range s.Modules {
		modules = append(modules, []any{m.RunOrder, m.Name, string(m.Status), len(m.Variables), m.Duration.Milliseconds(), m.Error})
	}

	vars := make([][]any, 0, len(r.Variables))
	for _, v := range r.Variables {
		vars = append(vars, []any{v.VarName, v.Module, v.Anchor, v.CreatedAt.UTC().Format(time.RFC3339), v.AgeDays, v.HasImage, v.Preview})
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{SheetRun, []string{"Field", "Value"}, run},
		{SheetReadiness, []string{"Alias", "Status", "Policy", "LastUpload", "Table"}, readiness},
		{SheetModules, []string{"Order", "Module", "Status", "Variables", "DurationMs", "Error"}, modules},
		{SheetVariables, []string{"Variable", "Module", "Anchor", "CreatedAt", "AgeDays", "HasImage", "Preview"}, vars},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.headers, sh.rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("sheet %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// Package sections contains the built-in report sections.
package sections

import (
	"report-assembler/internal/runner"
)

// Module names.
const (
	WindowSummary  = "window_summary"
	UploadOverview = "upload_overview"
	ColumnTotals   = "column_totals"
)

// Register adds every built-in section to reg.
func Register(reg *runner.Registry) error {
	for _, s := range []struct {
		name    string
		factory runner.Factory
	}{
		{WindowSummary, func() runner.Module { return runner.ModuleFunc(windowSummary) }},
		{UploadOverview, func() runner.Module { return runner.ModuleFunc(uploadOverview) }},
		{ColumnTotals, func() runner.Module { return &columnTotals{} }},
	} {
		if err := reg.Register(s.name, s.factory); err != nil {
			return err
		}
	}
	return nil
}

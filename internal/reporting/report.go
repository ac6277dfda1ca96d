package reporting

import (
	"time"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/runner"
)

// Report is a rendered view of one run and the variables it left behind.
type Report struct {
	GeneratedAt time.Time
	Summary     *runner.RunSummary

	// Variables of the report sorted by var_name, including those written by earlier runs.
	Variables []artifacts.VariableStatus
}

// ModuleCounts tallies module outcomes.
type ModuleCounts struct {
	OK      int
	Failed  int
	Skipped int
}

// Counts returns the module outcome tallies of the report's run.
func (r *Report) Counts() ModuleCounts {
	var c ModuleCounts
	if r.Summary == nil {
		return c
	}
	for _, m := range r.Summary.Modules {
		switch m.Status {
		case runner.ModuleOK:
			c.OK++
		case runner.ModuleFailed:
			c.Failed++
		case runner.ModuleSkipped:
			c.Skipped++
		}
	}
	return c
}

package sections

import (
	"context"
	"time"

	"report-assembler/internal/runner"
)

// PeriodSummary is the value written by the window_summary section.
type PeriodSummary struct {
	Label       string   `json:"label"`
	EpochYear   int      `json:"epoch_year"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	Months      []string `json:"months"`
	Rollover    bool     `json:"rollover"`
	Cutoff      string   `json:"cutoff"`
}

func windowSummary(ctx context.Context, rc *runner.Context) error {
	w := rc.Window
	v := PeriodSummary{
		Label:       w.Label(),
		EpochYear:   w.EpochYear,
		PeriodStart: w.PeriodStart.Format(time.DateOnly),
		PeriodEnd:   w.PeriodEnd.Format(time.DateOnly),
		Months:      w.MonthNames(),
		Rollover:    w.IsYearRollover,
		Cutoff:      rc.Cutoff.Format(time.DateOnly),
	}
	if err := rc.PutVariable(ctx, "reporting_period", v, runner.WithAnchor("REPORTING_PERIOD")); err != nil {
		return err
	}
	return rc.PutVariable(ctx, "period_label", v.Label, runner.WithAnchor("PERIOD_LABEL"))
}

package sections

import (
	"context"
	"time"

	"report-assembler/internal/readiness"
	"report-assembler/internal/runner"
)

// OverviewRow describes the dataset selected for one required alias.
type OverviewRow struct {
	Alias         string           `json:"alias"`
	Status        readiness.Status `json:"status"`
	PhysicalTable string           `json:"physical_table,omitempty"`
	UploadedAt    string           `json:"uploaded_at,omitempty"`
	Rows          int              `json:"rows"`
	SkippedEmpty  int              `json:"skipped_empty"`
}

// uploadOverview lists, per required alias, the upload every other section sees.
func uploadOverview(ctx context.Context, rc *runner.Context) error {
	var aliases []readiness.AliasStatus
	if rc.Readiness != nil {
		aliases = rc.Readiness.Aliases
	}

	rows := make([]OverviewRow, 0, len(aliases))
	for _, a := range aliases {
		row := OverviewRow{Alias: a.Alias, Status: a.Status}

		snap, err := rc.Snapshot(ctx, a.Alias)
		if err != nil {
			return err
		}
		row.SkippedEmpty = len(snap.Skipped)
		if !snap.IsEmpty() {
			row.PhysicalTable = snap.Event.PhysicalTable
			row.UploadedAt = snap.Event.UploadedAt.UTC().Format(time.RFC3339)
			row.Rows = snap.Dataset.Len()
		}
		rows = append(rows, row)
	}

	rc.SetOutput(UploadOverview, rows)
	return rc.PutVariable(ctx, "upload_overview", rows, runner.WithAnchor("UPLOAD_OVERVIEW"))
}

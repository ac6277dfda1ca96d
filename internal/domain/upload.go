package domain

import "time"

// UploadEvent records one upload of a source dataset.
// Corresponds to upload_ledger table. Rows are never updated or deleted.
type UploadEvent struct {
	ID            int64     // store-assigned, monotonically increasing
	Alias         string    // logical dataset name, e.g. "sales"
	ReportName    string    // report the upload was made for
	UploadedAt    time.Time // upload timestamp (UTC)
	PhysicalTable string    // locator of the materialized dataset
	RowCount      int       // informational only
	ColCount      int       // informational only
}

// AliasFreshness is the latest-upload pointer for an alias.
// Corresponds to alias_freshness table. Derived from the ledger and never
// used for snapshot selection.
type AliasFreshness struct {
	Alias         string
	ReportName    string
	PhysicalTable string
	LastLoadedAt  time.Time
}

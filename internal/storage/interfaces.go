package storage

import (
	"context"

	"report-assembler/internal/domain"
)

// UploadLedgerStore provides access to upload_ledger storage.
// The ledger is append-only: events are never updated or deleted.
type UploadLedgerStore interface {
	// Append adds a new upload event and assigns e.ID.
	Append(ctx context.Context, e *domain.UploadEvent) error

	// ListByAlias retrieves all events for an alias across all reports, ordered by uploaded_at ASC, id ASC.
	ListByAlias(ctx context.Context, alias string) ([]*domain.UploadEvent, error)

	// ListByReport retrieves all events recorded for a report, ordered by uploaded_at ASC, id ASC.
	ListByReport(ctx context.Context, reportName string) ([]*domain.UploadEvent, error)

	// LatestForReportAlias retrieves the most recent event for (report, alias). Returns ErrNotFound if none.
	LatestForReportAlias(ctx context.Context, reportName, alias string) (*domain.UploadEvent, error)
}

// AliasFreshnessStore provides access to alias_freshness storage.
type AliasFreshnessStore interface {
	// Upsert records the latest upload for an alias. An older LastLoadedAt never replaces a newer one.
	Upsert(ctx context.Context, f *domain.AliasFreshness) error

	// Get retrieves the freshness pointer for an alias. Returns ErrNotFound if not exists.
	Get(ctx context.Context, alias string) (*domain.AliasFreshness, error)

	// List retrieves all freshness pointers ordered by alias.
	List(ctx context.Context) ([]*domain.AliasFreshness, error)
}

// ReportDefinitionStore provides access to required_tables and report_modules storage.
type ReportDefinitionStore interface {
	// PutRequiredTable inserts or replaces the (report_name, alias) requirement.
	PutRequiredTable(ctx context.Context, rt *domain.RequiredTable) error

	// PutModule inserts or replaces the (report_name, module_name) configuration.
	PutModule(ctx context.Context, m *domain.ReportModule) error

	// RequiredTables retrieves all alias requirements of a report, ordered by alias.
	RequiredTables(ctx context.Context, reportName string) ([]*domain.RequiredTable, error)

	// Modules retrieves all module rows of a report, ordered by run_order ASC, module_name ASC.
	Modules(ctx context.Context, reportName string) ([]*domain.ReportModule, error)

	// Reports retrieves the names of all reports with any definition row, sorted.
	Reports(ctx context.Context) ([]string, error)
}

// VariableStore provides access to report_variables storage.
type VariableStore interface {
	// Replace atomically deletes any row for (report_name, var_name) and inserts v.
	// On failure the previous row is kept.
	Replace(ctx context.Context, v *domain.ReportVariable) error

	// Get retrieves a variable. Returns ErrNotFound if not exists.
	Get(ctx context.Context, reportName, varName string) (*domain.ReportVariable, error)

	// ListByReport retrieves all variables of a report, ordered by var_name.
	ListByReport(ctx context.Context, reportName string) ([]*domain.ReportVariable, error)
}

// ReportParamStore provides access to report_params storage.
type ReportParamStore interface {
	// Set inserts or replaces a parameter.
	Set(ctx context.Context, p *domain.ReportParam) error

	// Get retrieves a parameter. Returns ErrNotFound if not exists.
	Get(ctx context.Context, reportName, key string) (*domain.ReportParam, error)

	// List retrieves all parameters of a report, ordered by key.
	List(ctx context.Context, reportName string) ([]*domain.ReportParam, error)
}

// DatasetStore provides access to materialized physical tables.
type DatasetStore interface {
	// Save stores a dataset under ds.Locator. Returns ErrDuplicateKey if the locator exists.
	Save(ctx context.Context, ds *domain.Dataset) error

	// Load retrieves a dataset. Returns ErrNotFound if the locator does not exist.
	Load(ctx context.Context, locator string) (*domain.Dataset, error)
}

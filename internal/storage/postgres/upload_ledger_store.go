package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// UploadLedgerStore implements storage.UploadLedgerStore using PostgreSQL.
type UploadLedgerStore struct {
	pool *Pool
}

// NewUploadLedgerStore creates a new UploadLedgerStore.
func NewUploadLedgerStore(pool *Pool) *UploadLedgerStore {
	return &UploadLedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UploadLedgerStore = (*UploadLedgerStore)(nil)

const uploadColumns = `id, alias, report_name, uploaded_at, physical_table, row_count, col_count`

// Append adds a new upload event and assigns e.ID.
func (s *UploadLedgerStore) Append(ctx context.Context, e *domain.UploadEvent) error {
	if err := storage.ValidateUploadEvent(e); err != nil {
		return err
	}

	query := `
		INSERT INTO upload_ledger (alias, report_name, uploaded_at, physical_table, row_count, col_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		e.Alias,
		e.ReportName,
		e.UploadedAt,
		e.PhysicalTable,
		e.RowCount,
		e.ColCount,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append upload event: %w", err)
	}
	return nil
}

// ListByAlias retrieves all events for an alias, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByAlias(ctx context.Context, alias string) ([]*domain.UploadEvent, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM upload_ledger
		WHERE alias = $1
		ORDER BY uploaded_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, alias)
	if err != nil {
		return nil, fmt.Errorf("list uploads by alias: %w", err)
	}
	defer rows.Close()

	return scanUploadEvents(rows)
}

// ListByReport retrieves all events of a report, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByReport(ctx context.Context, reportName string) ([]*domain.UploadEvent, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM upload_ledger
		WHERE report_name = $1
		ORDER BY uploaded_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, reportName)
	if err != nil {
		return nil, fmt.Errorf("list uploads by report: %w", err)
	}
	defer rows.Close()

	return scanUploadEvents(rows)
}

// LatestForReportAlias retrieves the most recent event for (report, alias). Returns ErrNotFound if none.
func (s *UploadLedgerStore) LatestForReportAlias(ctx context.Context, reportName, alias string) (*domain.UploadEvent, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM upload_ledger
		WHERE report_name = $1 AND alias = $2
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1
	`

	e, err := scanUploadEvent(s.pool.QueryRow(ctx, query, reportName, alias))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest upload: %w", err)
	}
	return e, nil
}

// scanUploadEvent scans a single row into an UploadEvent.
func scanUploadEvent(row pgx.Row) (*domain.UploadEvent, error) {
	var e domain.UploadEvent
	err := row.Scan(
		&e.ID,
		&e.Alias,
		&e.ReportName,
		&e.UploadedAt,
		&e.PhysicalTable,
		&e.RowCount,
		&e.ColCount,
	)
	if err != nil {
		return nil, err
	}
	e.UploadedAt = e.UploadedAt.UTC()
	return &e, nil
}

// scanUploadEvents scans multiple rows into a slice of UploadEvent.
func scanUploadEvents(rows pgx.Rows) ([]*domain.UploadEvent, error) {
	var result []*domain.UploadEvent
	for rows.Next() {
		e, err := scanUploadEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload events: %w", err)
	}
	return result, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// UploadLedgerStore implements storage.UploadLedgerStore using SQLite.
type UploadLedgerStore struct {
	db *DB
}

// NewUploadLedgerStore creates a new UploadLedgerStore.
func NewUploadLedgerStore(db *DB) *UploadLedgerStore {
	return &UploadLedgerStore{db: db}
}

// Compile-time interface check.
var _ storage.UploadLedgerStore = (*UploadLedgerStore)(nil)

const uploadColumns = `id, alias, report_name, uploaded_at, physical_table, row_count, col_count`

// Append adds a new upload event and assigns e.ID.
func (s *UploadLedgerStore) Append(ctx context.Context, e *domain.UploadEvent) error {
	if err := storage.ValidateUploadEvent(e); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_ledger (alias, report_name, uploaded_at, physical_table, row_count, col_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Alias, e.ReportName, toMicros(e.UploadedAt), e.PhysicalTable, e.RowCount, e.ColCount,
	)
	if err != nil {
		return fmt.Errorf("append upload event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append upload event: %w", err)
	}
	e.ID = id
	return nil
}

// ListByAlias retrieves all events for an alias, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByAlias(ctx context.Context, alias string) ([]*domain.UploadEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM upload_ledger
		WHERE alias = ?
		ORDER BY uploaded_at ASC, id ASC`, alias)
	if err != nil {
		return nil, fmt.Errorf("list uploads by alias: %w", err)
	}
	defer rows.Close()

	return scanUploadEvents(rows)
}

// ListByReport retrieves all events of a report, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByReport(ctx context.Context, reportName string) ([]*domain.UploadEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM upload_ledger
		WHERE report_name = ?
		ORDER BY uploaded_at ASC, id ASC`, reportName)
	if err != nil {
		return nil, fmt.Errorf("list uploads by report: %w", err)
	}
	defer rows.Close()

	return scanUploadEvents(rows)
}

// LatestForReportAlias retrieves the most recent event for (report, alias). Returns ErrNotFound if none.
func (s *UploadLedgerStore) LatestForReportAlias(ctx context.Context, reportName, alias string) (*domain.UploadEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+uploadColumns+`
		FROM upload_ledger
		WHERE report_name = ? AND alias = ?
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`, reportName, alias)

	e, err := scanUploadEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest upload: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUploadEvent(row scanner) (*domain.UploadEvent, error) {
	var e domain.UploadEvent
	var uploadedAt int64
	if err := row.Scan(&e.ID, &e.Alias, &e.ReportName, &uploadedAt, &e.PhysicalTable, &e.RowCount, &e.ColCount); err != nil {
		return nil, err
	}
	e.UploadedAt = fromMicros(uploadedAt)
	return &e, nil
}

func scanUploadEvents(rows *sql.Rows) ([]*domain.UploadEvent, error) {
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

package sqlite

import (
	"context"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// AliasFreshnessStore implements storage.AliasFreshnessStore using SQLite.
type AliasFreshnessStore struct {
	db *DB
}

// NewAliasFreshnessStore creates a new AliasFreshnessStore.
func NewAliasFreshnessStore(db *DB) *AliasFreshnessStore {
	return &AliasFreshnessStore{db: db}
}

// Compile-time interface check.
var _ storage.AliasFreshnessStore = (*AliasFreshnessStore)(nil)

// Upsert records the latest upload for an alias. An older LastLoadedAt never replaces a newer one.
func (s *AliasFreshnessStore) Upsert(ctx context.Context, f *domain.AliasFreshness) error {
	if f == nil || f.Alias == "" || f.LastLoadedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alias_freshness (alias, report_name, physical_table, last_loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (alias) DO UPDATE SET
			report_name = excluded.report_name,
			physical_table = excluded.physical_table,
			last_loaded_at = excluded.last_loaded_at
		WHERE alias_freshness.last_loaded_at <= excluded.last_loaded_at`,
		f.Alias, f.ReportName, f.PhysicalTable, toMicros(f.LastLoadedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert alias freshness: %w", err)
	}
	return nil
}

// Get retrieves the freshness pointer for an alias. Returns ErrNotFound if not exists.
func (s *AliasFreshnessStore) Get(ctx context.Context, alias string) (*domain.AliasFreshness, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT alias, report_name, physical_table, last_loaded_at
		FROM alias_freshness WHERE alias = ?`, alias)

	f, err := scanFreshness(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alias freshness: %w", err)
	}
	return f, nil
}

// List retrieves all freshness pointers ordered by alias.
func (s *AliasFreshnessStore) List(ctx context.Context) ([]*domain.AliasFreshness, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, report_name, physical_table, last_loaded_at
		FROM alias_freshness ORDER BY alias ASC`)
	if err != nil {
		return nil, fmt.Errorf("list alias freshness: %w", err)
	}
	defer rows.Close()

	var result []*domain.AliasFreshness
	for rows.Next() {
		f, err := scanFreshness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alias freshness: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func scanFreshness(row scanner) (*domain.AliasFreshness, error) {
	var f domain.AliasFreshness
	var loadedAt int64
	if err := row.Scan(&f.Alias, &f.ReportName, &f.PhysicalTable, &loadedAt); err != nil {
		return nil, err
	}
	f.LastLoadedAt = fromMicros(loadedAt)
	return &f, nil
}

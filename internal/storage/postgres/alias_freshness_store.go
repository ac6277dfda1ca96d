package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// AliasFreshnessStore implements storage.AliasFreshnessStore using PostgreSQL.
type AliasFreshnessStore struct {
	pool *Pool
}

// NewAliasFreshnessStore creates a new AliasFreshnessStore.
func NewAliasFreshnessStore(pool *Pool) *AliasFreshnessStore {
	return &AliasFreshnessStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AliasFreshnessStore = (*AliasFreshnessStore)(nil)

// Upsert records the latest upload for an alias. An older LastLoadedAt never replaces a newer one.
func (s *AliasFreshnessStore) Upsert(ctx context.Context, f *domain.AliasFreshness) error {
	if f == nil || f.Alias == "" || f.LastLoadedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alias_freshness (alias, report_name, physical_table, last_loaded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (alias) DO UPDATE SET
			report_name = EXCLUDED.report_name,
			physical_table = EXCLUDED.physical_table,
			last_loaded_at = EXCLUDED.last_loaded_at
		WHERE alias_freshness.last_loaded_at <= EXCLUDED.last_loaded_at
	`

	_, err := s.pool.Exec(ctx, query, f.Alias, f.ReportName, f.PhysicalTable, f.LastLoadedAt)
	if err != nil {
		return fmt.Errorf("upsert alias freshness: %w", err)
	}
	return nil
}

// Get retrieves the freshness pointer for an alias. Returns ErrNotFound if not exists.
func (s *AliasFreshnessStore) Get(ctx context.Context, alias string) (*domain.AliasFreshness, error) {
	query := `
		SELECT alias, report_name, physical_table, last_loaded_at
		FROM alias_freshness
		WHERE alias = $1
	`

	f, err := scanFreshness(s.pool.QueryRow(ctx, query, alias))
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
	query := `
		SELECT alias, report_name, physical_table, last_loaded_at
		FROM alias_freshness
		ORDER BY alias ASC
	`

	rows, err := s.pool.Query(ctx, query)
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

func scanFreshness(row pgx.Row) (*domain.AliasFreshness, error) {
	var f domain.AliasFreshness
	if err := row.Scan(&f.Alias, &f.ReportName, &f.PhysicalTable, &f.LastLoadedAt); err != nil {
		return nil, err
	}
	f.LastLoadedAt = f.LastLoadedAt.UTC()
	return &f, nil
}

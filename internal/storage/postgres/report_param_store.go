package postgres

import (
	"context"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// ReportParamStore implements storage.ReportParamStore using PostgreSQL.
type ReportParamStore struct {
	pool *Pool
}

// NewReportParamStore creates a new ReportParamStore.
func NewReportParamStore(pool *Pool) *ReportParamStore {
	return &ReportParamStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportParamStore = (*ReportParamStore)(nil)

// Set inserts or replaces a parameter.
func (s *ReportParamStore) Set(ctx context.Context, p *domain.ReportParam) error {
	if err := storage.ValidateParam(p); err != nil {
		return err
	}

	query := `
		INSERT INTO report_params (report_name, key, value)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (report_name, key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := s.pool.Exec(ctx, query, p.ReportName, p.Key, string(p.Value)); err != nil {
		return fmt.Errorf("set param: %w", err)
	}
	return nil
}

// Get retrieves a parameter. Returns ErrNotFound if not exists.
func (s *ReportParamStore) Get(ctx context.Context, reportName, key string) (*domain.ReportParam, error) {
	query := `SELECT report_name, key, value FROM report_params WHERE report_name = $1 AND key = $2`

	var p domain.ReportParam
	var value []byte
	err := s.pool.QueryRow(ctx, query, reportName, key).Scan(&p.ReportName, &p.Key, &value)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get param: %w", err)
	}
	p.Value = value
	return &p, nil
}

// List retrieves all parameters of a report, ordered by key.
func (s *ReportParamStore) List(ctx context.Context, reportName string) ([]*domain.ReportParam, error) {
	query := `SELECT report_name, key, value FROM report_params WHERE report_name = $1 ORDER BY key ASC`

	rows, err := s.pool.Query(ctx, query, reportName)
	if err != nil {
		return nil, fmt.Errorf("list params: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReportParam
	for rows.Next() {
		var p domain.ReportParam
		var value []byte
		if err := rows.Scan(&p.ReportName, &p.Key, &value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		p.Value = value
		result = append(result, &p)
	}
	return result, rows.Err()
}

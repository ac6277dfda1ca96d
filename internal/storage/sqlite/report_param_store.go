package sqlite

import (
	"context"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// ReportParamStore implements storage.ReportParamStore using SQLite.
type ReportParamStore struct {
	db *DB
}

// NewReportParamStore creates a new ReportParamStore.
func NewReportParamStore(db *DB) *ReportParamStore {
	return &ReportParamStore{db: db}
}

// Compile-time interface check.
var _ storage.ReportParamStore = (*ReportParamStore)(nil)

// Set inserts or replaces a parameter.
func (s *ReportParamStore) Set(ctx context.Context, p *domain.ReportParam) error {
	if err := storage.ValidateParam(p); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_params (report_name, key, value) VALUES (?, ?, ?)
		ON CONFLICT (report_name, key) DO UPDATE SET value = excluded.value`,
		p.ReportName, p.Key, string(p.Value))
	if err != nil {
		return fmt.Errorf("set param: %w", err)
	}
	return nil
}

// Get retrieves a parameter. Returns ErrNotFound if not exists.
func (s *ReportParamStore) Get(ctx context.Context, reportName, key string) (*domain.ReportParam, error) {
	var p domain.ReportParam
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT report_name, key, value FROM report_params WHERE report_name = ? AND key = ?`,
		reportName, key).Scan(&p.ReportName, &p.Key, &value)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get param: %w", err)
	}
	p.Value = []byte(value)
	return &p, nil
}

// List retrieves all parameters of a report, ordered by key.
func (s *ReportParamStore) List(ctx context.Context, reportName string) ([]*domain.ReportParam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_name, key, value FROM report_params WHERE report_name = ? ORDER BY key ASC`, reportName)
	if err != nil {
		return nil, fmt.Errorf("list params: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReportParam
	for rows.Next() {
		var p domain.ReportParam
		var value string
		if err := rows.Scan(&p.ReportName, &p.Key, &value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		p.Value = []byte(value)
		result = append(result, &p)
	}
	return result, rows.Err()
}

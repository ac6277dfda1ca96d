package sqlite

import (
	"context"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// ReportDefinitionStore implements storage.ReportDefinitionStore using SQLite.
type ReportDefinitionStore struct {
	db *DB
}

// NewReportDefinitionStore creates a new ReportDefinitionStore.
func NewReportDefinitionStore(db *DB) *ReportDefinitionStore {
	return &ReportDefinitionStore{db: db}
}

// Compile-time interface check.
var _ storage.ReportDefinitionStore = (*ReportDefinitionStore)(nil)

// PutRequiredTable inserts or replaces the (report_name, alias) requirement.
func (s *ReportDefinitionStore) PutRequiredTable(ctx context.Context, rt *domain.RequiredTable) error {
	if rt == nil || rt.ReportName == "" || rt.Alias == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO required_tables (report_name, alias, required, expected_cutoff_policy)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_name, alias) DO UPDATE SET
			required = excluded.required,
			expected_cutoff_policy = excluded.expected_cutoff_policy`,
		rt.ReportName, rt.Alias, rt.Required, string(rt.ExpectedCutoffPolicy),
	)
	if err != nil {
		return fmt.Errorf("put required table: %w", err)
	}
	return nil
}

// PutModule inserts or replaces the (report_name, module_name) configuration.
func (s *ReportDefinitionStore) PutModule(ctx context.Context, m *domain.ReportModule) error {
	if m == nil || m.ReportName == "" || m.ModuleName == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_modules (report_name, module_name, run_order, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_name, module_name) DO UPDATE SET
			run_order = excluded.run_order,
			enabled = excluded.enabled`,
		m.ReportName, m.ModuleName, m.RunOrder, m.Enabled,
	)
	if err != nil {
		return fmt.Errorf("put module: %w", err)
	}
	return nil
}

// RequiredTables retrieves all alias requirements of a report, ordered by alias.
func (s *ReportDefinitionStore) RequiredTables(ctx context.Context, reportName string) ([]*domain.RequiredTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_name, alias, required, expected_cutoff_policy
		FROM required_tables WHERE report_name = ? ORDER BY alias ASC`, reportName)
	if err != nil {
		return nil, fmt.Errorf("list required tables: %w", err)
	}
	defer rows.Close()

	var result []*domain.RequiredTable
	for rows.Next() {
		var rt domain.RequiredTable
		var policy string
		if err := rows.Scan(&rt.ReportName, &rt.Alias, &rt.Required, &policy); err != nil {
			return nil, fmt.Errorf("scan required table: %w", err)
		}
		rt.ExpectedCutoffPolicy = domain.CutoffPolicy(policy)
		result = append(result, &rt)
	}
	return result, rows.Err()
}

// Modules retrieves all module rows of a report, ordered by run_order ASC, module_name ASC.
func (s *ReportDefinitionStore) Modules(ctx context.Context, reportName string) ([]*domain.ReportModule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_name, module_name, run_order, enabled
		FROM report_modules WHERE report_name = ?
		ORDER BY run_order ASC, module_name ASC`, reportName)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReportModule
	for rows.Next() {
		var m domain.ReportModule
		if err := rows.Scan(&m.ReportName, &m.ModuleName, &m.RunOrder, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

// Reports retrieves the names of all reports with any definition row, sorted.
func (s *ReportDefinitionStore) Reports(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_name FROM required_tables
		UNION
		SELECT report_name FROM report_modules
		ORDER BY report_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan report name: %w", err)
		}
		result = append(result, name)
	}
	return result, rows.Err()
}

package sqlite

import (
	"context"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// VariableStore implements storage.VariableStore using SQLite.
type VariableStore struct {
	db *DB
}

// NewVariableStore creates a new VariableStore.
func NewVariableStore(db *DB) *VariableStore {
	return &VariableStore{db: db}
}

// Compile-time interface check.
var _ storage.VariableStore = (*VariableStore)(nil)

const variableColumns = `report_name, module_name, var_name, value, anchor_name, rendered_image_path, created_at`

// Replace deletes any row for (report_name, var_name) and inserts v in one transaction.
func (s *VariableStore) Replace(ctx context.Context, v *domain.ReportVariable) error {
	if err := storage.ValidateVariable(v); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace variable: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM report_variables WHERE report_name = ? AND var_name = ?`,
		v.ReportName, v.VarName,
	); err != nil {
		return fmt.Errorf("replace variable %s/%s: delete: %w", v.ReportName, v.VarName, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO report_variables (`+variableColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ReportName, v.ModuleName, v.VarName, string(v.Value), v.AnchorName, v.RenderedImagePath, toMicros(v.CreatedAt),
	); err != nil {
		return fmt.Errorf("replace variable %s/%s: insert: %w", v.ReportName, v.VarName, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace variable %s/%s: commit: %w", v.ReportName, v.VarName, err)
	}
	return nil
}

// Get retrieves a variable. Returns ErrNotFound if not exists.
func (s *VariableStore) Get(ctx context.Context, reportName, varName string) (*domain.ReportVariable, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+variableColumns+` FROM report_variables WHERE report_name = ? AND var_name = ?`,
		reportName, varName)

	v, err := scanVariable(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get variable: %w", err)
	}
	return v, nil
}

// ListByReport retrieves all variables of a report, ordered by var_name.
func (s *VariableStore) ListByReport(ctx context.Context, reportName string) ([]*domain.ReportVariable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+variableColumns+` FROM report_variables WHERE report_name = ? ORDER BY var_name ASC`,
		reportName)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReportVariable
	for rows.Next() {
		v, err := scanVariable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func scanVariable(row scanner) (*domain.ReportVariable, error) {
	var v domain.ReportVariable
	var value string
	var createdAt int64
	if err := row.Scan(&v.ReportName, &v.ModuleName, &v.VarName, &value, &v.AnchorName, &v.RenderedImagePath, &createdAt); err != nil {
		return nil, err
	}
	v.Value = []byte(value)
	v.CreatedAt = fromMicros(createdAt)
	return &v, nil
}

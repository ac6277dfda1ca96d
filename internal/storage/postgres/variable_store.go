package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// VariableStore implements storage.VariableStore using PostgreSQL.
type VariableStore struct {
	pool *Pool
}

// NewVariableStore creates a new VariableStore.
func NewVariableStore(pool *Pool) *VariableStore {
	return &VariableStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VariableStore = (*VariableStore)(nil)

const variableColumns = `report_name, module_name, var_name, value, anchor_name, rendered_image_path, created_at`

// Replace deletes any row for (report_name, var_name) and inserts v in one transaction.
func (s *VariableStore) Replace(ctx context.Context, v *domain.ReportVariable) error {
	if err := storage.ValidateVariable(v); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM report_variables WHERE report_name = $1 AND var_name = $2`,
			v.ReportName, v.VarName,
		); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		query := `
			INSERT INTO report_variables (` + variableColumns + `)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
		`
		if _, err := tx.Exec(ctx, query,
			v.ReportName,
			v.ModuleName,
			v.VarName,
			string(v.Value),
			v.AnchorName,
			v.RenderedImagePath,
			v.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace variable %s/%s: %w", v.ReportName, v.VarName, err)
	}
	return nil
}

// Get retrieves a variable. Returns ErrNotFound if not exists.
func (s *VariableStore) Get(ctx context.Context, reportName, varName string) (*domain.ReportVariable, error) {
	query := `
		SELECT ` + variableColumns + `
		FROM report_variables
		WHERE report_name = $1 AND var_name = $2
	`

	v, err := scanVariable(s.pool.QueryRow(ctx, query, reportName, varName))
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
	query := `
		SELECT ` + variableColumns + `
		FROM report_variables
		WHERE report_name = $1
		ORDER BY var_name ASC
	`

	rows, err := s.pool.Query(ctx, query, reportName)
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

func scanVariable(row pgx.Row) (*domain.ReportVariable, error) {
	var v domain.ReportVariable
	var value []byte
	err := row.Scan(
		&v.ReportName,
		&v.ModuleName,
		&v.VarName,
		&value,
		&v.AnchorName,
		&v.RenderedImagePath,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Value = value
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

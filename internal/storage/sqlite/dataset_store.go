package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// DatasetStore implements storage.DatasetStore using SQLite.
// Rows are stored as JSON text in dataset_rows.
type DatasetStore struct {
	db  *DB
	now func() time.Time
}

// NewDatasetStore creates a new DatasetStore.
func NewDatasetStore(db *DB) *DatasetStore {
	return &DatasetStore{db: db, now: time.Now}
}

// Compile-time interface check.
var _ storage.DatasetStore = (*DatasetStore)(nil)

// Save stores a dataset. Returns ErrDuplicateKey if the locator exists.
func (s *DatasetStore) Save(ctx context.Context, ds *domain.Dataset) error {
	if err := storage.ValidateDataset(ds); err != nil {
		return err
	}

	columns := ds.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save dataset %s: begin: %w", ds.Locator, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (locator, columns, created_at) VALUES (?, ?, ?)`,
		ds.Locator, string(columnsJSON), toMicros(s.now()),
	); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save dataset %s: %w", ds.Locator, err)
	}

	if len(ds.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (locator, ordinal, data) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("save dataset %s: prepare: %w", ds.Locator, err)
		}
		defer stmt.Close()

		for i, row := range ds.Rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, ds.Locator, i, string(data)); err != nil {
				return fmt.Errorf("save dataset %s row %d: %w", ds.Locator, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save dataset %s: commit: %w", ds.Locator, err)
	}
	return nil
}

// Load retrieves a dataset. Returns ErrNotFound if the locator does not exist.
func (s *DatasetStore) Load(ctx context.Context, locator string) (*domain.Dataset, error) {
	var columnsJSON string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM datasets WHERE locator = ?`, locator).Scan(&columnsJSON)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load dataset %s: %w", locator, err)
	}

	ds := &domain.Dataset{Locator: locator}
	if err := json.Unmarshal([]byte(columnsJSON), &ds.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of %s: %w", locator, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM dataset_rows WHERE locator = ? ORDER BY ordinal ASC`, locator)
	if err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", locator, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", locator, err)
		}
		row, err := storage.DecodeRow([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode row of %s: %w", locator, err)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// DatasetStore implements storage.DatasetStore using PostgreSQL.
// Rows are stored as JSONB documents in dataset_rows.
type DatasetStore struct {
	pool *Pool
}

// NewDatasetStore creates a new DatasetStore.
func NewDatasetStore(pool *Pool) *DatasetStore {
	return &DatasetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DatasetStore = (*DatasetStore)(nil)

// Save stores a dataset. Returns ErrDuplicateKey if the locator exists.
func (s *DatasetStore) Save(ctx context.Context, ds *domain.Dataset) error {
	if err := storage.ValidateDataset(ds); err != nil {
		return err
	}

	rows := make([][]any, len(ds.Rows))
	for i, row := range ds.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		rows[i] = []any{ds.Locator, i, data}
	}

	columns := ds.Columns
	if columns == nil {
		columns = []string{}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO datasets (locator, columns) VALUES ($1, $2)`,
			ds.Locator, columns,
		); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"dataset_rows"},
			[]string{"locator", "ordinal", "data"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save dataset %s: %w", ds.Locator, err)
	}
	return nil
}

// Load retrieves a dataset. Returns ErrNotFound if the locator does not exist.
func (s *DatasetStore) Load(ctx context.Context, locator string) (*domain.Dataset, error) {
	ds := &domain.Dataset{Locator: locator}

	err := s.pool.QueryRow(ctx, `SELECT columns FROM datasets WHERE locator = $1`, locator).Scan(&ds.Columns)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load dataset %s: %w", locator, err)
	}

	rows, err := s.pool.Query(ctx, `SELECT data FROM dataset_rows WHERE locator = $1 ORDER BY ordinal ASC`, locator)
	if err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", locator, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", locator, err)
		}
		row, err := storage.DecodeRow(data)
		if err != nil {
			return nil, fmt.Errorf("decode row of %s: %w", locator, err)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, rows.Err()
}

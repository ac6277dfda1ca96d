package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// DatasetStore implements storage.DatasetStore using ClickHouse.
// Headers live in datasets, rows as JSON strings in dataset_rows.
type DatasetStore struct {
	conn *Conn
}

// NewDatasetStore creates a new DatasetStore.
func NewDatasetStore(conn *Conn) *DatasetStore {
	return &DatasetStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DatasetStore = (*DatasetStore)(nil)

// Save stores a dataset. Returns ErrDuplicateKey if the locator exists.
// MergeTree does not enforce uniqueness, so existence is checked first.
// Rows left behind by an earlier Save that failed before its header was
// written are removed before the new rows go in.
func (s *DatasetStore) Save(ctx context.Context, ds *domain.Dataset) error {
	if err := storage.ValidateDataset(ds); err != nil {
		return err
	}

	exists, err := s.exists(ctx, ds.Locator)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}
	if err := s.dropOrphanRows(ctx, ds.Locator); err != nil {
		return err
	}

	if len(ds.Rows) > 0 {
		if err := s.insertRows(ctx, ds); err != nil {
			return err
		}
	}

	columns := ds.Columns
	if columns == nil {
		columns = []string{}
	}

	// Header goes last so a reader never sees a header without its rows.
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO datasets (locator, columns, row_count)`)
	if err != nil {
		return fmt.Errorf("prepare header batch: %w", err)
	}
	if err := batch.Append(ds.Locator, columns, uint32(len(ds.Rows))); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send header batch: %w", err)
	}
	return nil
}

func (s *DatasetStore) insertRows(ctx context.Context, ds *domain.Dataset) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO dataset_rows (locator, ordinal, data)`)
	if err != nil {
		return fmt.Errorf("prepare rows batch: %w", err)
	}
	for i, row := range ds.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := batch.Append(ds.Locator, uint32(i), string(data)); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send rows batch: %w", err)
	}
	return nil
}

// dropOrphanRows deletes rows of a locator that has no header. The mutation
// runs synchronously so the following insert cannot race it.
func (s *DatasetStore) dropOrphanRows(ctx context.Context, locator string) error {
	var orphans uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM dataset_rows WHERE locator = ?`, locator,
	).Scan(&orphans); err != nil {
		return fmt.Errorf("count orphan rows for %s: %w", locator, err)
	}
	if orphans == 0 {
		return nil
	}

	syncCtx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{"mutations_sync": 2}))
	if err := s.conn.Exec(syncCtx, `ALTER TABLE dataset_rows DELETE WHERE locator = ?`, locator); err != nil {
		return fmt.Errorf("delete orphan rows for %s: %w", locator, err)
	}
	return nil
}

// Load retrieves a dataset. Returns ErrNotFound if the locator does not exist.
func (s *DatasetStore) Load(ctx context.Context, locator string) (*domain.Dataset, error) {
	header, err := s.conn.Query(ctx, `
		SELECT columns, row_count FROM datasets FINAL
		WHERE locator = ?
		LIMIT 1
	`, locator)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", locator, err)
	}
	defer header.Close()

	if !header.Next() {
		if err := header.Err(); err != nil {
			return nil, fmt.Errorf("query dataset %s: %w", locator, err)
		}
		return nil, storage.ErrNotFound
	}

	ds := &domain.Dataset{Locator: locator}
	var rowCount uint32
	if err := header.Scan(&ds.Columns, &rowCount); err != nil {
		return nil, fmt.Errorf("scan dataset %s: %w", locator, err)
	}
	if rowCount == 0 {
		return ds, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT data FROM dataset_rows
		WHERE locator = ?
		ORDER BY ordinal ASC
	`, locator)
	if err != nil {
		return nil, fmt.Errorf("query rows of %s: %w", locator, err)
	}
	defer rows.Close()

	ds.Rows, err = scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("rows of %s: %w", locator, err)
	}
	return ds, nil
}

func (s *DatasetStore) exists(ctx context.Context, locator string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM datasets WHERE locator = ?`, locator).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanRows(rows chRows) ([]domain.Row, error) {
	var out []domain.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row, err := storage.DecodeRow([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

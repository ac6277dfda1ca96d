package memory

import (
	"context"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// DatasetStore is an in-memory implementation of storage.DatasetStore.
type DatasetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Dataset // keyed by locator
}

// NewDatasetStore creates a new in-memory dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		data: make(map[string]*domain.Dataset),
	}
}

// Save stores a dataset. Returns ErrDuplicateKey if the locator exists.
func (s *DatasetStore) Save(_ context.Context, ds *domain.Dataset) error {
	if err := storage.ValidateDataset(ds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[ds.Locator]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[ds.Locator] = copyDataset(ds)
	return nil
}

// Load retrieves a dataset. Returns ErrNotFound if the locator does not exist.
func (s *DatasetStore) Load(_ context.Context, locator string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.data[locator]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyDataset(ds), nil
}

// copyDataset copies rows one level deep; cell values are treated as immutable.
func copyDataset(ds *domain.Dataset) *domain.Dataset {
	out := &domain.Dataset{
		Locator: ds.Locator,
		Columns: append([]string(nil), ds.Columns...),
		Rows:    make([]domain.Row, len(ds.Rows)),
	}
	for i, r := range ds.Rows {
		row := make(domain.Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		out.Rows[i] = row
	}
	return out
}

// Verify interface compliance at compile time.
var _ storage.DatasetStore = (*DatasetStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// AliasFreshnessStore is an in-memory implementation of storage.AliasFreshnessStore.
type AliasFreshnessStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AliasFreshness // keyed by alias
}

// NewAliasFreshnessStore creates a new in-memory freshness store.
func NewAliasFreshnessStore() *AliasFreshnessStore {
	return &AliasFreshnessStore{
		data: make(map[string]*domain.AliasFreshness),
	}
}

// Upsert records the latest upload for an alias. An older LastLoadedAt never replaces a newer one.
func (s *AliasFreshnessStore) Upsert(_ context.Context, f *domain.AliasFreshness) error {
	if f == nil || f.Alias == "" || f.LastLoadedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[f.Alias]; ok && existing.LastLoadedAt.After(f.LastLoadedAt) {
		return nil
	}

	freshnessCopy := *f
	s.data[f.Alias] = &freshnessCopy
	return nil
}

// Get retrieves the freshness pointer for an alias. Returns ErrNotFound if not exists.
func (s *AliasFreshnessStore) Get(_ context.Context, alias string) (*domain.AliasFreshness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.data[alias]
	if !ok {
		return nil, storage.ErrNotFound
	}
	freshnessCopy := *f
	return &freshnessCopy, nil
}

// List retrieves all freshness pointers ordered by alias.
func (s *AliasFreshnessStore) List(_ context.Context) ([]*domain.AliasFreshness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AliasFreshness, 0, len(s.data))
	for _, f := range s.data {
		freshnessCopy := *f
		result = append(result, &freshnessCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Alias < result[j].Alias })
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AliasFreshnessStore = (*AliasFreshnessStore)(nil)

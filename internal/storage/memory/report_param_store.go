package memory

import (
	"context"
	"sort"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// ReportParamStore is an in-memory implementation of storage.ReportParamStore.
type ReportParamStore struct {
	mu   sync.RWMutex
	data map[defKey]*domain.ReportParam // keyed by (report, key)
}

// NewReportParamStore creates a new in-memory parameter store.
func NewReportParamStore() *ReportParamStore {
	return &ReportParamStore{
		data: make(map[defKey]*domain.ReportParam),
	}
}

// Set inserts or replaces a parameter.
func (s *ReportParamStore) Set(_ context.Context, p *domain.ReportParam) error {
	if err := storage.ValidateParam(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[defKey{p.ReportName, p.Key}] = copyParam(p)
	return nil
}

// Get retrieves a parameter. Returns ErrNotFound if not exists.
func (s *ReportParamStore) Get(_ context.Context, reportName, key string) (*domain.ReportParam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[defKey{reportName, key}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyParam(p), nil
}

// List retrieves all parameters of a report, ordered by key.
func (s *ReportParamStore) List(_ context.Context, reportName string) ([]*domain.ReportParam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReportParam
	for k, p := range s.data {
		if k.report == reportName {
			result = append(result, copyParam(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func copyParam(p *domain.ReportParam) *domain.ReportParam {
	pCopy := *p
	pCopy.Value = append([]byte(nil), p.Value...)
	return &pCopy
}

// Verify interface compliance at compile time.
var _ storage.ReportParamStore = (*ReportParamStore)(nil)

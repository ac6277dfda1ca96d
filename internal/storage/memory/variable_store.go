package memory

import (
	"context"
	"sort"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// VariableStore is an in-memory implementation of storage.VariableStore.
type VariableStore struct {
	mu   sync.RWMutex
	data map[defKey]*domain.ReportVariable // keyed by (report, var_name)
}

// NewVariableStore creates a new in-memory variable store.
func NewVariableStore() *VariableStore {
	return &VariableStore{
		data: make(map[defKey]*domain.ReportVariable),
	}
}

// Replace atomically swaps the row for (report_name, var_name).
func (s *VariableStore) Replace(_ context.Context, v *domain.ReportVariable) error {
	if err := storage.ValidateVariable(v); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[defKey{v.ReportName, v.VarName}] = copyVariable(v)
	return nil
}

// Get retrieves a variable. Returns ErrNotFound if not exists.
func (s *VariableStore) Get(_ context.Context, reportName, varName string) (*domain.ReportVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[defKey{reportName, varName}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyVariable(v), nil
}

// ListByReport retrieves all variables of a report, ordered by var_name.
func (s *VariableStore) ListByReport(_ context.Context, reportName string) ([]*domain.ReportVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReportVariable
	for k, v := range s.data {
		if k.report == reportName {
			result = append(result, copyVariable(v))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VarName < result[j].VarName })
	return result, nil
}

func copyVariable(v *domain.ReportVariable) *domain.ReportVariable {
	vCopy := *v
	vCopy.Value = append([]byte(nil), v.Value...)
	return &vCopy
}

// Verify interface compliance at compile time.
var _ storage.VariableStore = (*VariableStore)(nil)

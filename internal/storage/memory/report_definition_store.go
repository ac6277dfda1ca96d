package memory

import (
	"context"
	"sort"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

type defKey struct {
	report string
	name   string
}

// ReportDefinitionStore is an in-memory implementation of storage.ReportDefinitionStore.
type ReportDefinitionStore struct {
	mu       sync.RWMutex
	required map[defKey]*domain.RequiredTable // keyed by (report, alias)
	modules  map[defKey]*domain.ReportModule  // keyed by (report, module)
}

// NewReportDefinitionStore creates a new in-memory report definition store.
func NewReportDefinitionStore() *ReportDefinitionStore {
	return &ReportDefinitionStore{
		required: make(map[defKey]*domain.RequiredTable),
		modules:  make(map[defKey]*domain.ReportModule),
	}
}

// PutRequiredTable inserts or replaces the (report_name, alias) requirement.
func (s *ReportDefinitionStore) PutRequiredTable(_ context.Context, rt *domain.RequiredTable) error {
	if rt == nil || rt.ReportName == "" || rt.Alias == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rtCopy := *rt
	s.required[defKey{rt.ReportName, rt.Alias}] = &rtCopy
	return nil
}

// PutModule inserts or replaces the (report_name, module_name) configuration.
func (s *ReportDefinitionStore) PutModule(_ context.Context, m *domain.ReportModule) error {
	if m == nil || m.ReportName == "" || m.ModuleName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mCopy := *m
	s.modules[defKey{m.ReportName, m.ModuleName}] = &mCopy
	return nil
}

// RequiredTables retrieves all alias requirements of a report, ordered by alias.
func (s *ReportDefinitionStore) RequiredTables(_ context.Context, reportName string) ([]*domain.RequiredTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RequiredTable
	for k, rt := range s.required {
		if k.report == reportName {
			rtCopy := *rt
			result = append(result, &rtCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Alias < result[j].Alias })
	return result, nil
}

// Modules retrieves all module rows of a report, ordered by run_order ASC, module_name ASC.
func (s *ReportDefinitionStore) Modules(_ context.Context, reportName string) ([]*domain.ReportModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReportModule
	for k, m := range s.modules {
		if k.report == reportName {
			mCopy := *m
			result = append(result, &mCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RunOrder != result[j].RunOrder {
			return result[i].RunOrder < result[j].RunOrder
		}
		return result[i].ModuleName < result[j].ModuleName
	})
	return result, nil
}

// Reports retrieves the names of all reports with any definition row, sorted.
func (s *ReportDefinitionStore) Reports(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.required {
		seen[k.report] = struct{}{}
	}
	for k := range s.modules {
		seen[k.report] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ReportDefinitionStore = (*ReportDefinitionStore)(nil)

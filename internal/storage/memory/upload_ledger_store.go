package memory

import (
	"context"
	"sort"
	"sync"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// UploadLedgerStore is an in-memory implementation of storage.UploadLedgerStore.
type UploadLedgerStore struct {
	mu     sync.RWMutex
	events []*domain.UploadEvent // append order, which is also id order
	nextID int64
}

// NewUploadLedgerStore creates a new in-memory upload ledger.
func NewUploadLedgerStore() *UploadLedgerStore {
	return &UploadLedgerStore{nextID: 1}
}

// Append adds a new upload event and assigns e.ID.
func (s *UploadLedgerStore) Append(_ context.Context, e *domain.UploadEvent) error {
	if err := storage.ValidateUploadEvent(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// ListByAlias retrieves all events for an alias, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByAlias(_ context.Context, alias string) ([]*domain.UploadEvent, error) {
	return s.filter(func(e *domain.UploadEvent) bool { return e.Alias == alias }), nil
}

// ListByReport retrieves all events for a report, ordered by uploaded_at ASC, id ASC.
func (s *UploadLedgerStore) ListByReport(_ context.Context, reportName string) ([]*domain.UploadEvent, error) {
	return s.filter(func(e *domain.UploadEvent) bool { return e.ReportName == reportName }), nil
}

// LatestForReportAlias retrieves the most recent event for (report, alias). Returns ErrNotFound if none.
func (s *UploadLedgerStore) LatestForReportAlias(_ context.Context, reportName, alias string) (*domain.UploadEvent, error) {
	events := s.filter(func(e *domain.UploadEvent) bool {
		return e.ReportName == reportName && e.Alias == alias
	})
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[len(events)-1], nil
}

func (s *UploadLedgerStore) filter(keep func(*domain.UploadEvent) bool) []*domain.UploadEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.UploadEvent
	for _, e := range s.events {
		if keep(e) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	// Sort by uploaded_at ASC, id ASC
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].UploadedAt.Before(result[j].UploadedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result
}

// Verify interface compliance at compile time.
var _ storage.UploadLedgerStore = (*UploadLedgerStore)(nil)

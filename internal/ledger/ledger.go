// Package ledger records dataset uploads and answers freshness questions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/domain"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/storage"
)

// ErrFreshnessNotUpdated is returned together with the recorded event when the
// append succeeded but the freshness pointer could not be advanced. The
// event is durable and must not be recorded again; the pointer catches up on
// the alias's next upload.
var ErrFreshnessNotUpdated = errors.New("upload recorded but freshness not updated")

// UploadRequest describes a dataset that was just materialized.
type UploadRequest struct {
	Alias         string
	ReportName    string
	PhysicalTable string
	RowCount      int
	ColCount      int
}

// Ledger appends upload events and maintains the alias freshness pointers.
type Ledger struct {
	events    storage.UploadLedgerStore
	freshness storage.AliasFreshnessStore
	metrics   *observability.Metrics
	logger    logrus.FieldLogger
	now       func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for uploaded_at.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMetrics attaches metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger.
func New(events storage.UploadLedgerStore, freshness storage.AliasFreshnessStore, opts ...Option) *Ledger {
	l := &Ledger{
		events:    events,
		freshness: freshness,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrDiscard(l.logger)
	return l
}

// RecordUpload appends an immutable upload event stamped with the current time
// and advances the alias freshness pointer. If only the freshness update
// fails, the appended event is returned along with an error wrapping
// ErrFreshnessNotUpdated.
func (l *Ledger) RecordUpload(ctx context.Context, req UploadRequest) (*domain.UploadEvent, error) {
	event := &domain.UploadEvent{
		Alias:         req.Alias,
		ReportName:    req.ReportName,
		PhysicalTable: req.PhysicalTable,
		RowCount:      req.RowCount,
		ColCount:      req.ColCount,
		// Postgres stores microseconds; truncating keeps every backend comparable.
		UploadedAt: l.now().UTC().Truncate(time.Microsecond),
	}

	if err := l.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append upload %s/%s: %w", req.ReportName, req.Alias, err)
	}

	err := l.freshness.Upsert(ctx, &domain.AliasFreshness{
		Alias:         event.Alias,
		ReportName:    event.ReportName,
		PhysicalTable: event.PhysicalTable,
		LastLoadedAt:  event.UploadedAt,
	})
	l.metrics.RecordUpload(event.Alias)
	log := l.logger.WithFields(logrus.Fields{
		"alias":  event.Alias,
		"report": event.ReportName,
		"table":  event.PhysicalTable,
		"rows":   event.RowCount,
		"id":     event.ID,
	})
	if err != nil {
		log.WithError(err).Warn("upload recorded, freshness update failed")
		return event, fmt.Errorf("upload #%d for %s: %w: %w", event.ID, event.Alias, ErrFreshnessNotUpdated, err)
	}
	log.Info("upload recorded")

	return event, nil
}

// Freshness returns the latest-upload pointer for alias. Returns storage.ErrNotFound if never uploaded.
func (l *Ledger) Freshness(ctx context.Context, alias string) (*domain.AliasFreshness, error) {
	return l.freshness.Get(ctx, alias)
}

// IsStale reports whether alias was last loaded more than maxAge ago.
// An alias that was never uploaded is stale.
func (l *Ledger) IsStale(ctx context.Context, alias string, maxAge time.Duration) (bool, error) {
	f, err := l.freshness.Get(ctx, alias)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("get freshness for %s: %w", alias, err)
	}
	return l.now().Sub(f.LastLoadedAt) > maxAge, nil
}

// History returns every upload recorded for a report in upload order.
func (l *Ledger) History(ctx context.Context, reportName string) ([]*domain.UploadEvent, error) {
	events, err := l.events.ListByReport(ctx, reportName)
	if err != nil {
		return nil, fmt.Errorf("list uploads for %s: %w", reportName, err)
	}
	return events, nil
}

// Package snapshot selects which upload of an alias is authoritative for a cutoff.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/domain"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/storage"
)

// ErrEmptySnapshot is returned by FetchRequired when no upload of the alias has data.
var ErrEmptySnapshot = errors.New("no non-empty upload available")

// Selection outcomes reported to metrics.
const (
	OutcomeNearest  = "nearest"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
)

// Snapshot is the upload chosen for (alias, cutoff) and its materialized data.
// Event and Dataset are nil when no candidate had data.
type Snapshot struct {
	Alias   string
	Cutoff  time.Time
	Event   *domain.UploadEvent
	Dataset *domain.Dataset
	Skipped []*domain.UploadEvent // nearer candidates passed over as empty
}

// IsEmpty reports whether no usable upload was found.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || s.Event == nil || s.Dataset.IsEmpty()
}

// Rows returns the dataset rows, or nil for an empty snapshot.
func (s *Snapshot) Rows() []domain.Row {
	if s.IsEmpty() {
		return nil
	}
	return s.Dataset.Rows
}

// Selector implements nearest-nonempty snapshot selection.
type Selector struct {
	events   storage.UploadLedgerStore
	datasets storage.DatasetStore
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
}

// New creates a Selector. metrics and logger may be nil.
func New(events storage.UploadLedgerStore, datasets storage.DatasetStore, metrics *observability.Metrics, logger logrus.FieldLogger) *Selector {
	return &Selector{
		events:   events,
		datasets: datasets,
		metrics:  metrics,
		logger:   logging.OrDiscard(logger),
	}
}

// Fetch returns the upload of alias nearest in time to cutoff whose dataset is non-empty.
// Uploads for every report are candidates. Candidates whose physical table is
// empty or missing are skipped. When nothing qualifies an empty Snapshot is
// returned without error; storage failures are returned as errors.
func (s *Selector) Fetch(ctx context.Context, alias string, cutoff time.Time) (*Snapshot, error) {
	events, err := s.events.ListByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("list uploads for %s: %w", alias, err)
	}

	snap := &Snapshot{Alias: alias, Cutoff: cutoff}
	log := s.logger.WithFields(logrus.Fields{"alias": alias, "cutoff": cutoff.Format(time.DateOnly)})

	for _, candidate := range OrderCandidates(events, cutoff) {
		ds, err := s.datasets.Load(ctx, candidate.PhysicalTable)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load dataset %s: %w", candidate.PhysicalTable, err)
		}
		if err != nil || ds.IsEmpty() {
			log.WithField("table", candidate.PhysicalTable).Debug("skipping empty upload candidate")
			snap.Skipped = append(snap.Skipped, candidate)
			continue
		}

		snap.Event = candidate
		snap.Dataset = ds
		break
	}

	outcome := OutcomeNearest
	switch {
	case snap.Event == nil:
		outcome = OutcomeEmpty
		log.WithField("candidates", len(events)).Warn("no non-empty upload found")
	case len(snap.Skipped) > 0:
		outcome = OutcomeFallback
		log.WithFields(logrus.Fields{
			"table":   snap.Event.PhysicalTable,
			"skipped": len(snap.Skipped),
		}).Info("fell back past empty uploads")
	}
	s.metrics.RecordSnapshot(alias, outcome, len(snap.Skipped))

	return snap, nil
}

// FetchRequired is Fetch for callers that cannot proceed without data.
// It returns an error wrapping ErrEmptySnapshot instead of an empty Snapshot.
func (s *Selector) FetchRequired(ctx context.Context, alias string, cutoff time.Time) (*Snapshot, error) {
	snap, err := s.Fetch(ctx, alias, cutoff)
	if err != nil {
		return nil, err
	}
	if snap.IsEmpty() {
		return nil, fmt.Errorf("%w: alias %q as of %s", ErrEmptySnapshot, alias, cutoff.Format(time.DateOnly))
	}
	return snap, nil
}

// OrderCandidates returns events sorted by |uploaded_at - cutoff| ascending.
// Ties prefer the more recent upload, then the higher id. The input is not modified.
func OrderCandidates(events []*domain.UploadEvent, cutoff time.Time) []*domain.UploadEvent {
	ordered := make([]*domain.UploadEvent, len(events))
	copy(ordered, events)

	sort.SliceStable(ordered, func(i, j int) bool {
		di := distance(ordered[i].UploadedAt, cutoff)
		dj := distance(ordered[j].UploadedAt, cutoff)
		if di != dj {
			return di < dj
		}
		if !ordered[i].UploadedAt.Equal(ordered[j].UploadedAt) {
			return ordered[i].UploadedAt.After(ordered[j].UploadedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	return ordered
}

func distance(t, cutoff time.Time) time.Duration {
	d := t.Sub(cutoff)
	if d < 0 {
		return -d
	}
	return d
}

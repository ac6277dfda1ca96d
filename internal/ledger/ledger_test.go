package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
	"report-assembler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newLedger(clock *fixedClock) (*Ledger, *memory.UploadLedgerStore, *memory.AliasFreshnessStore) {
	events := memory.NewUploadLedgerStore()
	freshness := memory.NewAliasFreshnessStore()
	return New(events, freshness, WithClock(clock.now)), events, freshness
}

func TestRecordUpload_AppendsAndUpdatesFreshness(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC)}
	l, events, _ := newLedger(clock)
	ctx := context.Background()

	ev, err := l.RecordUpload(ctx, UploadRequest{
		Alias: "sales", ReportName: "Q_TEST", PhysicalTable: "sales_v1", RowCount: 3, ColCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, clock.t.Truncate(time.Microsecond), ev.UploadedAt)

	stored, err := events.ListByAlias(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "sales_v1", stored[0].PhysicalTable)

	f, err := l.Freshness(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales_v1", f.PhysicalTable)
	assert.True(t, f.LastLoadedAt.Equal(ev.UploadedAt))
}

func TestRecordUpload_SupersedesWithoutDeleting(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	l, _, _ := newLedger(clock)
	ctx := context.Background()

	_, err := l.RecordUpload(ctx, UploadRequest{Alias: "sales", ReportName: "Q_TEST", PhysicalTable: "v1"})
	require.NoError(t, err)
	clock.t = clock.t.Add(24 * time.Hour)
	_, err = l.RecordUpload(ctx, UploadRequest{Alias: "sales", ReportName: "Q_TEST", PhysicalTable: "v2"})
	require.NoError(t, err)

	history, err := l.History(ctx, "Q_TEST")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "v1", history[0].PhysicalTable)
	assert.Equal(t, "v2", history[1].PhysicalTable)

	f, _ := l.Freshness(ctx, "sales")
	assert.Equal(t, "v2", f.PhysicalTable)
}

func TestRecordUpload_InvalidInput(t *testing.T) {
	l, _, _ := newLedger(&fixedClock{t: time.Now()})

	_, err := l.RecordUpload(context.Background(), UploadRequest{Alias: "sales"})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

type failingLedgerStore struct {
	storage.UploadLedgerStore
}

func (failingLedgerStore) Append(context.Context, *domain.UploadEvent) error {
	return errors.New("disk full")
}

func TestRecordUpload_PropagatesStorageErrors(t *testing.T) {
	freshness := memory.NewAliasFreshnessStore()
	l := New(failingLedgerStore{}, freshness)

	_, err := l.RecordUpload(context.Background(), UploadRequest{Alias: "sales", ReportName: "Q", PhysicalTable: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = freshness.Get(context.Background(), "sales")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "freshness must not advance when append fails")
}

type failingFreshnessStore struct {
	storage.AliasFreshnessStore
}

func (failingFreshnessStore) Upsert(context.Context, *domain.AliasFreshness) error {
	return errors.New("connection reset")
}

func TestRecordUpload_FreshnessFailureReturnsEvent(t *testing.T) {
	events := memory.NewUploadLedgerStore()
	l := New(events, failingFreshnessStore{})
	ctx := context.Background()

	event, err := l.RecordUpload(ctx, UploadRequest{Alias: "sales", ReportName: "Q", PhysicalTable: "t", RowCount: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFreshnessNotUpdated))
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, event, "the appended event is returned so callers do not retry")
	assert.NotZero(t, event.ID)

	history, err := l.History(ctx, "Q")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, event.ID, history[0].ID)
}

func TestIsStale(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	l, _, _ := newLedger(clock)
	ctx := context.Background()

	stale, err := l.IsStale(ctx, "sales", time.Hour)
	require.NoError(t, err)
	assert.True(t, stale, "never uploaded alias is stale")

	_, _ = l.RecordUpload(ctx, UploadRequest{Alias: "sales", ReportName: "Q", PhysicalTable: "t"})

	clock.t = clock.t.Add(30 * time.Minute)
	stale, _ = l.IsStale(ctx, "sales", time.Hour)
	assert.False(t, stale)

	clock.t = clock.t.Add(2 * time.Hour)
	stale, _ = l.IsStale(ctx, "sales", time.Hour)
	assert.True(t, stale)
}

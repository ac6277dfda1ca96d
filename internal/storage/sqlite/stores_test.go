package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
	"report-assembler/internal/storage/migrations"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()

	db, err := Open(ctx, path, migrations.RunSQLiteMigrations)
	require.NoError(t, err)
	require.NoError(t, NewUploadLedgerStore(db).Append(ctx, &domain.UploadEvent{
		Alias: "sales", ReportName: "Q", UploadedAt: ts(1), PhysicalTable: "t",
	}))
	require.NoError(t, db.Close())

	// Migrations are idempotent and data survives reopen.
	db, err = Open(ctx, path, migrations.RunSQLiteMigrations)
	require.NoError(t, err)
	defer db.Close()

	list, err := NewUploadLedgerStore(db).ListByAlias(ctx, "sales")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUploadLedgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewUploadLedgerStore(db)
	ctx := context.Background()

	events := []*domain.UploadEvent{
		{Alias: "sales", ReportName: "Q", UploadedAt: ts(3), PhysicalTable: "sales_3", RowCount: 10, ColCount: 4},
		{Alias: "sales", ReportName: "Q", UploadedAt: ts(1), PhysicalTable: "sales_1", RowCount: 5, ColCount: 4},
		{Alias: "sales", ReportName: "OTHER", UploadedAt: ts(2), PhysicalTable: "sales_2", RowCount: 0, ColCount: 4},
		{Alias: "costs", ReportName: "Q", UploadedAt: ts(2), PhysicalTable: "costs_2", RowCount: 1, ColCount: 2},
	}
	for _, e := range events {
		require.NoError(t, store.Append(ctx, e))
		assert.NotZero(t, e.ID)
	}

	byAlias, err := store.ListByAlias(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, byAlias, 3)
	assert.Equal(t, "sales_1", byAlias[0].PhysicalTable)
	assert.Equal(t, "sales_3", byAlias[2].PhysicalTable)
	assert.True(t, byAlias[0].UploadedAt.Equal(ts(1)))
	assert.Equal(t, 4, byAlias[0].ColCount)

	byReport, err := store.ListByReport(ctx, "Q")
	require.NoError(t, err)
	assert.Len(t, byReport, 3)

	latest, err := store.LatestForReportAlias(ctx, "Q", "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales_3", latest.PhysicalTable)

	_, err = store.LatestForReportAlias(ctx, "Q", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Append(ctx, &domain.UploadEvent{Alias: "x"}), storage.ErrInvalidInput)
}

func TestUploadLedgerStore_SameInstantOrderedByID(t *testing.T) {
	db := setupTestDB(t)
	store := NewUploadLedgerStore(db)
	ctx := context.Background()

	first := &domain.UploadEvent{Alias: "sales", ReportName: "Q", UploadedAt: ts(2), PhysicalTable: "a"}
	second := &domain.UploadEvent{Alias: "sales", ReportName: "Q", UploadedAt: ts(2), PhysicalTable: "b"}
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	assert.Greater(t, second.ID, first.ID)

	latest, err := store.LatestForReportAlias(ctx, "Q", "sales")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.PhysicalTable)
}

func TestUploadLedgerStore_AppendOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewUploadLedgerStore(db).Append(ctx, &domain.UploadEvent{
		Alias: "a", ReportName: "Q", UploadedAt: ts(1), PhysicalTable: "t",
	}))

	_, err := db.ExecContext(ctx, `DELETE FROM upload_ledger`)
	assert.ErrorContains(t, err, "append-only")
	_, err = db.ExecContext(ctx, `UPDATE upload_ledger SET row_count = 1`)
	assert.ErrorContains(t, err, "append-only")
}

func TestUploadLedgerStore_ConcurrentAppend(t *testing.T) {
	db := setupTestDB(t)
	store := NewUploadLedgerStore(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, &domain.UploadEvent{
				Alias: "sales", ReportName: "Q", UploadedAt: ts(1 + i%5), PhysicalTable: "t", RowCount: i,
			}))
		}(i)
	}
	wg.Wait()

	list, err := store.ListByAlias(ctx, "sales")
	require.NoError(t, err)
	assert.Len(t, list, 20)
}

func TestAliasFreshnessStore_Monotonic(t *testing.T) {
	db := setupTestDB(t)
	store := NewAliasFreshnessStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.AliasFreshness{Alias: "sales", ReportName: "Q", PhysicalTable: "new", LastLoadedAt: ts(5)}))
	require.NoError(t, store.Upsert(ctx, &domain.AliasFreshness{Alias: "sales", ReportName: "Q", PhysicalTable: "old", LastLoadedAt: ts(1)}))
	require.NoError(t, store.Upsert(ctx, &domain.AliasFreshness{Alias: "costs", ReportName: "Q", PhysicalTable: "c", LastLoadedAt: ts(2)}))

	f, err := store.Get(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "new", f.PhysicalTable)
	assert.True(t, f.LastLoadedAt.Equal(ts(5)))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "costs", list[0].Alias)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportDefinitionStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewReportDefinitionStore(db)
	ctx := context.Background()

	require.NoError(t, store.PutRequiredTable(ctx, &domain.RequiredTable{ReportName: "Q", Alias: "sales", Required: true}))
	require.NoError(t, store.PutRequiredTable(ctx, &domain.RequiredTable{ReportName: "Q", Alias: "costs", Required: true, ExpectedCutoffPolicy: domain.PolicyStrict}))
	require.NoError(t, store.PutRequiredTable(ctx, &domain.RequiredTable{ReportName: "Q", Alias: "sales", Required: false}))
	require.NoError(t, store.PutModule(ctx, &domain.ReportModule{ReportName: "Q", ModuleName: "b", RunOrder: 2, Enabled: true}))
	require.NoError(t, store.PutModule(ctx, &domain.ReportModule{ReportName: "Q", ModuleName: "a", RunOrder: 2, Enabled: false}))
	require.NoError(t, store.PutModule(ctx, &domain.ReportModule{ReportName: "M", ModuleName: "z", RunOrder: 1, Enabled: true}))

	required, err := store.RequiredTables(ctx, "Q")
	require.NoError(t, err)
	require.Len(t, required, 2)
	assert.Equal(t, "costs", required[0].Alias)
	assert.True(t, required[0].Required)
	assert.Equal(t, domain.PolicyStrict, required[0].ExpectedCutoffPolicy)
	assert.False(t, required[1].Required)

	modules, err := store.Modules(ctx, "Q")
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "a", modules[0].ModuleName)
	assert.False(t, modules[0].Enabled)
	assert.True(t, modules[1].Enabled)

	reports, err := store.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "Q"}, reports)
}

func TestVariableStore_Replace(t *testing.T) {
	db := setupTestDB(t)
	store := NewVariableStore(db)
	ctx := context.Background()

	v := &domain.ReportVariable{
		ReportName: "Q", ModuleName: "m", VarName: "total",
		Value: json.RawMessage(`{"amount": 1}`), AnchorName: "TOTAL", CreatedAt: ts(1),
	}
	require.NoError(t, store.Replace(ctx, v))

	v2 := *v
	v2.Value = json.RawMessage(`{"amount": 2}`)
	v2.CreatedAt = ts(2)
	v2.RenderedImagePath = "/img/total_table.png"
	require.NoError(t, store.Replace(ctx, &v2))

	got, err := store.Get(ctx, "Q", "total")
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 2}`, string(got.Value))
	assert.Equal(t, "/img/total_table.png", got.RenderedImagePath)
	assert.True(t, got.CreatedAt.Equal(ts(2)))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_variables`).Scan(&count))
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "Q", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Replace(ctx, &domain.ReportVariable{ReportName: "Q"}), storage.ErrInvalidInput)
}

func TestVariableStore_ReplaceRollsBackOnInsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM report_variables").
		WithArgs("Q", "total").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO report_variables").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := NewVariableStore(&DB{DB: mockDB})
	err = store.Replace(context.Background(), &domain.ReportVariable{
		ReportName: "Q", ModuleName: "m", VarName: "total", Value: json.RawMessage(`1`), CreatedAt: ts(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace variable Q/total: insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportParamStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewReportParamStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &domain.ReportParam{ReportName: "Q", Key: "CURRENCY", Value: json.RawMessage(`"EUR"`)}))
	require.NoError(t, store.Set(ctx, &domain.ReportParam{ReportName: "Q", Key: "CURRENCY", Value: json.RawMessage(`"USD"`)}))
	require.NoError(t, store.Set(ctx, &domain.ReportParam{ReportName: "Q", Key: "A", Value: json.RawMessage(`[1,2]`)}))

	p, err := store.Get(ctx, "Q", "CURRENCY")
	require.NoError(t, err)
	assert.JSONEq(t, `"USD"`, string(p.Value))

	list, err := store.List(ctx, "Q")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Key)

	_, err = store.Get(ctx, "Q", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDatasetStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewDatasetStore(db)
	ctx := context.Background()

	ds := &domain.Dataset{
		Locator: "sales_2024_05_01",
		Columns: []string{"date", "amount"},
		Rows: []domain.Row{
			{"date": "2024-01-02", "amount": 10.25},
			{"date": "2024-02-03", "amount": 0.1},
		},
	}
	require.NoError(t, store.Save(ctx, ds))
	assert.ErrorIs(t, store.Save(ctx, ds), storage.ErrDuplicateKey)

	got, err := store.Load(ctx, "sales_2024_05_01")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "2024-01-02", got.Rows[0]["date"])
	assert.Equal(t, json.Number("10.25"), got.Rows[0]["amount"])
	assert.Equal(t, json.Number("0.1"), got.Rows[1]["amount"])

	require.NoError(t, store.Save(ctx, &domain.Dataset{Locator: "empty"}))
	empty, err := store.Load(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

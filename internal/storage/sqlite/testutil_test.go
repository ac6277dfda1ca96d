package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"report-assembler/internal/storage/migrations"
)

// setupTestDB opens a migrated in-memory database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:", migrations.RunSQLiteMigrations)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// ts returns day d of May 2024 at 10:00 UTC.
func ts(d int) time.Time {
	return time.Date(2024, 5, d, 10, 0, 0, 0, time.UTC)
}

package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"

	"report-assembler/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded schema in a single transaction,
// so a failing file leaves no partial schema behind. Every file is written
// to be re-runnable.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, file := range files {
			data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", file, err)
			}
			body := strings.TrimSpace(string(data))
			if body == "" {
				continue
			}
			if _, err := tx.Exec(ctx, body); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		return nil
	})
}

package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jinford/pdf-rag/internal/platform/database"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationLockID = database.GenerateLockID("pdf-rag", "schema_migrations")

// Migrate は未適用のマイグレーションを順に適用する。
// 複数プロセスから同時に呼ばれてもアドバイザリロックで直列化される
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return failure.Wrap(failure.ErrStore, "read migrations", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	_, err = database.Transact(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		if err := database.AcquireAdvisoryLock(ctx, tx, migrationLockID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version    INTEGER PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`); err != nil {
			return struct{}{}, fmt.Errorf("failed to create schema_migrations: %w", err)
		}

		var current int
		if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
			return struct{}{}, fmt.Errorf("failed to get schema version: %w", err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
				continue
			}
			version, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
			if err != nil || version <= current {
				continue
			}

			content, err := migrationFiles.ReadFile("migrations/" + name)
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to read migration %s: %w", name, err)
			}

			s.logger.Info("applying migration", "file", name, "version", version)

			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return struct{}{}, fmt.Errorf("failed to apply migration %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
				return struct{}{}, fmt.Errorf("failed to record migration %s: %w", name, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return failure.Wrap(failure.ErrStore, "migrate schema", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Migrator is what RunMigrations needs from a pool.
type Migrator interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isTransient reports whether err looks like a dropped or refused connection
// rather than a SQL error.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RunMigrations applies every *.up.sql file at the root of migrations in
// lexical order. Applied versions are tracked in schema_migrations, and each
// file runs in its own transaction.
func RunMigrations(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	return withRetry(ctx, logger, "run migrations", isTransient, func() error {
		return migrateOnce(ctx, db, migrations, logger)
	})
}

func migrateOnce(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if err := applyMigration(ctx, db, name, string(content)); err != nil {
			return err
		}
		logger.Info("migration applied", slog.String("version", name))
	}
	return nil
}

func applyMigration(ctx context.Context, db Migrator, name, sql string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

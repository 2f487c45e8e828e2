package repository

import (
	"context"
	"embed"
	"fmt"

	"entgo.io/ent/dialect"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the idempotent schema script for the connected dialect.
func (db *DB) Migrate(ctx context.Context) error {
	name := "migrations/postgres.sql"
	if db.Dialect == dialect.SQLite {
		name = "migrations/sqlite.sql"
	}
	script, err := migrationsFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	db.logger.Info("applying schema", "script", name)
	if _, err := db.SQL.ExecContext(ctx, string(script)); err != nil {
		db.logger.Error("failed to apply schema", "script", name, "error", err)
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

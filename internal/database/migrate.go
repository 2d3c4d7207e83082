// Package database provides the migration runner shared by any binary that
// owns its own Postgres schema (today, only the template service).
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/tern/v2/migrate"
)

// Migrate connects directly (bypassing the pool) and applies every pending
// migration under migrationsPath, in order. It is idempotent: already
// applied migrations are recorded in the schema_version table and skipped.
func Migrate(ctx context.Context, databaseURL, migrationsPath string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect for migration: %w", err)
	}
	defer conn.Close(ctx)

	migrator, err := migrate.NewMigrator(ctx, conn, "schema_version")
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.LoadMigrations(migrationsPath); err != nil {
		return fmt.Errorf("load migrations from %s: %w", migrationsPath, err)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

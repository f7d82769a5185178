package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate executes a goose command (up, down, status, version, redo, ...)
// against the embedded migrations.
func (d *Database) Migrate(ctx context.Context, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, d.DB.DB, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	d.logger.Info("Database migrations completed", "command", command)
	return nil
}

// MaybeAutoMigrate runs "up" when auto migration is switched on, which is
// meant for local development only.
func (d *Database) MaybeAutoMigrate(ctx context.Context, enabled bool) error {
	if !enabled {
		return nil
	}

	d.logger.Info("Running goose migrations (auto-migrate)")
	return d.Migrate(ctx, "up")
}

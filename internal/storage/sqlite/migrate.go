package sqlite

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator builds a migrator over the embedded schema for the database at storagePath.
func NewMigrator(storagePath, migrationTable string) (*migrate.Migrate, error) {
	const op = "storage.sqlite.NewMigrator"

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	databaseURL := fmt.Sprintf("sqlite3://%s?x-migrations-table=%s", storagePath, migrationTable)

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

// MigrateUp applies every pending migration. No pending migrations is not an error.
func MigrateUp(storagePath, migrationTable string) error {
	const op = "storage.sqlite.MigrateUp"

	m, err := NewMigrator(storagePath, migrationTable)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	upErr := m.Up()
	sourceErr, dbErr := m.Close()

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, upErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("%s: close source: %w", op, sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("%s: close database: %w", op, dbErr)
	}

	return nil
}

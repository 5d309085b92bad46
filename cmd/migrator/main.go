package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"link-insights/internal/config"
	"link-insights/internal/lib/logger/slogcute"
	"link-insights/internal/storage/sqlite"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

func main() {
	var (
		direction string
		steps     int
	)

	flag.StringVar(&direction, "direction", directionUp, "Direction to migrate (up or down)")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply, 0 applies all")
	cfg := config.MustLoad()

	log := setupLogger()

	log.Info("starting migrator",
		slog.String("env", cfg.Env),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("migration_table", cfg.Migrations.MigrationTable),
		slog.String("direction", direction),
		slog.Int("steps", steps),
	)

	if cfg.Storage.Driver != "sqlite" {
		log.Info("storage driver has no schema migrations, nothing to do", slog.String("driver", cfg.Storage.Driver))
		return
	}

	if err := validateDirection(direction); err != nil {
		log.Error("invalid direction", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := runMigrations(log, cfg.Storage.Path, cfg.Migrations.MigrationTable, direction, steps); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("migrations completed successfully")
}

func setupLogger() *slog.Logger {
	opts := slogcute.CuteHandlerOptions{
		SlogOptions: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewCuteHandler(os.Stdout)

	return slog.New(handler)
}

func validateDirection(direction string) error {
	if direction != directionUp && direction != directionDown {
		return fmt.Errorf("invalid direction '%s', must be 'up' or 'down'", direction)
	}
	return nil
}

func runMigrations(log *slog.Logger, storagePath, migrationTable, direction string, steps int) error {
	log.Info("initializing migrator", slog.String("database", storagePath))

	m, err := sqlite.NewMigrator(storagePath, migrationTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil {
			log.Error("failed to close migration source", slog.String("error", sourceErr.Error()))
		}
		if dbErr != nil {
			log.Error("failed to close database", slog.String("error", dbErr.Error()))
		}
	}()

	switch {
	case steps > 0 && direction == directionDown:
		log.Info("rolling back migrations", slog.Int("steps", steps))
		err = m.Steps(-steps)
	case steps > 0:
		log.Info("applying migrations", slog.Int("steps", steps))
		err = m.Steps(steps)
	case direction == directionDown:
		log.Info("applying migrations down")
		err = m.Down()
	default:
		log.Info("applying migrations up")
		err = m.Up()
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	return nil
}

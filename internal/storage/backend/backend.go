package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"link-insights/internal/config"
	"link-insights/internal/storage"
	"link-insights/internal/storage/dynamo"
	"link-insights/internal/storage/instrumented"
	"link-insights/internal/storage/memory"
	"link-insights/internal/storage/redis"
	"link-insights/internal/storage/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverDynamoDB = "dynamodb"
)

// Open builds the configured store wrapped with Prometheus instrumentation.
func Open(ctx context.Context, log *slog.Logger, cfg *config.Config) (storage.Store, error) {
	const op = "storage.backend.Open"

	log = log.With(slog.String("op", op), slog.String("driver", cfg.Storage.Driver))

	var (
		store storage.Store
		err   error
	)

	switch cfg.Storage.Driver {
	case DriverMemory:
		store = memory.New()
	case DriverSQLite:
		store, err = openSQLite(log, cfg)
	case DriverRedis:
		store, err = redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case DriverDynamoDB:
		store, err = openDynamo(ctx, cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("storage initialized")

	return instrumented.New(store), nil
}

func openSQLite(log *slog.Logger, cfg *config.Config) (storage.Store, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	if cfg.Migrations.AutoMigrate {
		if err := sqlite.MigrateUp(cfg.Storage.Path, cfg.Migrations.MigrationTable); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
	}

	return sqlite.New(cfg.Storage.Path)
}

func openDynamo(ctx context.Context, cfg config.DynamoDBConfig) (storage.Store, error) {
	client, err := dynamo.NewClient(ctx, dynamo.ClientOptions{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	return dynamo.New(client, dynamo.Tables{
		Links:           cfg.LinksTable,
		Aliases:         cfg.AliasesTable,
		Clicks:          cfg.ClicksTable,
		Counters:        cfg.CountersTable,
		Insights:        cfg.InsightsTable,
		Monitor:         cfg.MonitorTable,
		VisibilityIndex: cfg.VisibilityIndex,
	}), nil
}

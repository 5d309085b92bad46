package backend_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"link-insights/internal/config"
	"link-insights/internal/domain/link"
	"link-insights/internal/storage/backend"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		driver string
	}{
		{name: "memory", driver: backend.DriverMemory},
		{name: "sqlite", driver: backend.DriverSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{}
			cfg.Storage.Driver = tt.driver
			cfg.Storage.Path = filepath.Join(t.TempDir(), "nested", "links.db")
			cfg.Migrations.MigrationTable = "migrations"
			cfg.Migrations.AutoMigrate = true

			store, err := backend.Open(context.Background(), discard, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			ctx := context.Background()
			require.NoError(t, store.InsertLink(ctx, link.Record{
				Code:           "aB3dE9x",
				DestinationURL: "https://example.com",
				Visibility:     link.VisibilityPublic,
				CreatedAt:      time.Now(),
			}))

			got, err := store.LinkByCode(ctx, "aB3dE9x")
			require.NoError(t, err)
			require.Equal(t, "https://example.com", got.DestinationURL)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Storage.Driver = "cassandra"

	_, err := backend.Open(context.Background(), discard, cfg)
	require.ErrorContains(t, err, "unknown storage driver")
}

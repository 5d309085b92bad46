package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMustLoadByPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
env: "dev"
storage:
  driver: "memory"
allocation:
  max_attempts: 3
public_list:
  default_limit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := MustLoadByPath(path)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, 3, cfg.Allocation.MaxAttempts)
	require.Equal(t, 7, cfg.Allocation.CodeLength)
	require.Equal(t, 20, cfg.PublicList.DefaultLimit)
	require.Equal(t, 100, cfg.PublicList.MaxLimit)
	require.Equal(t, 24*time.Hour, cfg.Insight.TTL)
	require.Equal(t, 7*24*time.Hour, cfg.Analytics.Window)
	require.Equal(t, ":8080", cfg.HTTPServer.Address)
}

func TestMustLoadByPathMissingFile(t *testing.T) {
	require.Panics(t, func() {
		MustLoadByPath(filepath.Join(t.TempDir(), "absent.yaml"))
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sqlite", cfg.Queue.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Queue.Visibility)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, "fs", cfg.Store.Backend)
	assert.Equal(t, "local", cfg.Executor.Mode)
	assert.Equal(t, "npx playwright test {script}", cfg.Executor.RunnerCommand)
	assert.Equal(t, 10*time.Minute, cfg.Executor.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Defects.Enabled)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
provider: mock
tracker:
  url: https://example.atlassian.net
  project: PROJ
queue:
  backend: postgres
  dsn: postgres://localhost/qaflow
executor:
  mode: docker
  timeout: 2m
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, "https://example.atlassian.net", cfg.Tracker.URL)
	assert.Equal(t, "postgres", cfg.Queue.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Executor.Timeout)
	// Unset fields keep their defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("QAFLOW_PROVIDER", "mock")
	t.Setenv("QAFLOW_QUEUE_BACKEND", "postgres")
	t.Setenv("QAFLOW_STORE_BUCKET", "night-runs")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, "postgres", cfg.Queue.Backend)
	assert.Equal(t, "night-runs", cfg.Store.Bucket)
}

func TestLoad_BrokenExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirT(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://powerflex.io", cfg.BaseURL)
	assert.Equal(t, 7*24*time.Hour, cfg.CatalogMaxAge)
	assert.Equal(t, 10*time.Minute, cfg.RenewInterval)
	assert.Equal(t, 120*time.Second, cfg.CredentialTimeout)
	assert.Equal(t, "liteon", cfg.SupportedModel)
	assert.Equal(t, "file", cfg.LedgerBackend)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	chdirT(t, dir)
	t.Setenv("HOME", t.TempDir())

	file := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
base_url = "https://staging.example"
catalog_max_age = "24h"
requests_per_second = 5
credential_command = ["get-token", "stg"]
log_level = "debug"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PRICECHECK_SUPPORTED_MODEL=acme\n"), 0o600))
	t.Setenv("PRICECHECK_CATALOG_MAX_AGE", "2h")
	t.Setenv("PRICECHECK_SUPPORTED_MODEL", "")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example", cfg.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.CatalogMaxAge, "env wins over file")
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, []string{"get-token", "stg"}, cfg.CredentialCommand)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadSearchPath(t *testing.T) {
	dir := t.TempDir()
	chdirT(t, dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricecheck.toml"), []byte(`cache_dir = "/tmp/pc"`), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pc", cfg.CacheDir)
	assert.Equal(t, filepath.Join("/tmp/pc", LedgerFile), cfg.Path(LedgerFile))
}

func TestLoadBadDuration(t *testing.T) {
	chdirT(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRICECHECK_HTTP_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorContains(t, err, "PRICECHECK_HTTP_TIMEOUT")
}

func TestJournalTarget(t *testing.T) {
	cfg := Config{CacheDir: "/c"}
	driver, dsn := cfg.JournalTarget()
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, filepath.Join("/c", JournalFile), dsn)

	cfg.JournalDSN = "mysql:u:p@tcp(db:3306)/pc"
	driver, dsn = cfg.JournalTarget()
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "u:p@tcp(db:3306)/pc", dsn)

	cfg.JournalDSN = "off"
	driver, _ = cfg.JournalTarget()
	assert.Empty(t, driver)
}

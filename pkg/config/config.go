// Package config assembles runtime settings from defaults, an optional TOML
// file, a .env file and PRICECHECK_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "PRICECHECK_"

// File names under CacheDir.
const (
	SitesCacheFile = "sites_cache.json"
	ProgressFile   = "pricing_check_progress.json"
	LedgerFile     = "pricing_odd_ones_out.json"
	JournalFile    = "pricing_attempts.db"
)

// Config holds every tunable of the tool.
type Config struct {
	CacheDir          string
	BaseURL           string
	Token             string // static credential; skips CredentialCommand when set
	CredentialCommand []string
	CredentialTimeout time.Duration
	RenewInterval     time.Duration
	CatalogMaxAge     time.Duration
	SupportedModel    string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	LedgerBackend     string // file|consul
	ConsulAddr        string
	ConsulKey         string
	JournalDSN        string // sqlite:<path> | mysql:<dsn> | off
	ProgressURL       string
	MetricsFile       string
	LogLevel          string
}

// fileConfig mirrors Config in TOML; durations are strings ("10m", "168h").
type fileConfig struct {
	CacheDir          string   `toml:"cache_dir"`
	BaseURL           string   `toml:"base_url"`
	CredentialCommand []string `toml:"credential_command"`
	CredentialTimeout string   `toml:"credential_timeout"`
	RenewInterval     string   `toml:"renew_interval"`
	CatalogMaxAge     string   `toml:"catalog_max_age"`
	SupportedModel    string   `toml:"supported_model"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	HTTPTimeout       string   `toml:"http_timeout"`
	LedgerBackend     string   `toml:"ledger_backend"`
	ConsulAddr        string   `toml:"consul_addr"`
	ConsulKey         string   `toml:"consul_key"`
	JournalDSN        string   `toml:"journal_dsn"`
	ProgressURL       string   `toml:"progress_url"`
	MetricsFile       string   `toml:"metrics_file"`
	LogLevel          string   `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CacheDir:          defaultCacheDir(),
		BaseURL:           "https://powerflex.io",
		CredentialCommand: []string{"powerflex_get_jwt_pass.sh", "prd"},
		CredentialTimeout: 120 * time.Second,
		RenewInterval:     10 * time.Minute,
		CatalogMaxAge:     7 * 24 * time.Hour,
		SupportedModel:    "liteon",
		LedgerBackend:     "file",
		ConsulAddr:        "127.0.0.1:8500",
		ConsulKey:         "pricecheck/ledger",
		LogLevel:          "info",
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "site_lookup")
	}
	return filepath.Join(home, ".cache", "site_lookup")
}

// Load builds the configuration. path names an explicit TOML file; when empty
// the search paths are tried and a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	} else {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				if err := cfg.mergeFile(p); err != nil {
					return cfg, err
				}
				break
			}
		}
	}
	if err := loadDotEnv(); err != nil {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SearchPaths lists config file locations, highest priority first.
func SearchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pricecheck", "config.toml"))
	}
	return append(paths, filepath.Join(".", "pricecheck.toml"))
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	var f fileConfig
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	setString(&c.CacheDir, f.CacheDir)
	setString(&c.BaseURL, f.BaseURL)
	if len(f.CredentialCommand) > 0 {
		c.CredentialCommand = f.CredentialCommand
	}
	setString(&c.SupportedModel, f.SupportedModel)
	if f.RequestsPerSecond > 0 {
		c.RequestsPerSecond = f.RequestsPerSecond
	}
	setString(&c.LedgerBackend, f.LedgerBackend)
	setString(&c.ConsulAddr, f.ConsulAddr)
	setString(&c.ConsulKey, f.ConsulKey)
	setString(&c.JournalDSN, f.JournalDSN)
	setString(&c.ProgressURL, f.ProgressURL)
	setString(&c.MetricsFile, f.MetricsFile)
	setString(&c.LogLevel, f.LogLevel)
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.CredentialTimeout, f.CredentialTimeout, "credential_timeout"},
		{&c.RenewInterval, f.RenewInterval, "renew_interval"},
		{&c.CatalogMaxAge, f.CatalogMaxAge, "catalog_max_age"},
		{&c.HTTPTimeout, f.HTTPTimeout, "http_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.CacheDir, os.Getenv(envPrefix+"CACHE_DIR"))
	setString(&c.BaseURL, os.Getenv(envPrefix+"BASE_URL"))
	setString(&c.Token, os.Getenv(envPrefix+"TOKEN"))
	if v := os.Getenv(envPrefix + "CREDENTIAL_COMMAND"); v != "" {
		c.CredentialCommand = strings.Fields(v)
	}
	setString(&c.SupportedModel, os.Getenv(envPrefix+"SUPPORTED_MODEL"))
	setString(&c.LedgerBackend, os.Getenv(envPrefix+"LEDGER_BACKEND"))
	setString(&c.ConsulAddr, os.Getenv(envPrefix+"CONSUL_ADDR"))
	setString(&c.ConsulKey, os.Getenv(envPrefix+"CONSUL_KEY"))
	setString(&c.JournalDSN, os.Getenv(envPrefix+"JOURNAL_DSN"))
	setString(&c.ProgressURL, os.Getenv(envPrefix+"PROGRESS_URL"))
	setString(&c.MetricsFile, os.Getenv(envPrefix+"METRICS_FILE"))
	setString(&c.LogLevel, os.Getenv(envPrefix+"LOG_LEVEL"))
	if v := os.Getenv(envPrefix + "REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sREQUESTS_PER_SECOND: %w", envPrefix, err)
		}
		c.RequestsPerSecond = f
	}
	var err error
	c.CredentialTimeout, err = envDuration("CREDENTIAL_TIMEOUT", c.CredentialTimeout)
	if err != nil {
		return err
	}
	c.RenewInterval, err = envDuration("RENEW_INTERVAL", c.RenewInterval)
	if err != nil {
		return err
	}
	c.CatalogMaxAge, err = envDuration("CATALOG_MAX_AGE", c.CatalogMaxAge)
	if err != nil {
		return err
	}
	c.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	return err
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Path joins name onto the cache directory.
func (c Config) Path(name string) string {
	return filepath.Join(c.CacheDir, name)
}

// JournalTarget returns the journal driver and data source; driver is empty
// when the journal is disabled.
func (c Config) JournalTarget() (driver, dsn string) {
	switch {
	case c.JournalDSN == "off":
		return "", ""
	case c.JournalDSN == "":
		return "sqlite", c.Path(JournalFile)
	case strings.HasPrefix(c.JournalDSN, "sqlite:"):
		return "sqlite", strings.TrimPrefix(c.JournalDSN, "sqlite:")
	case strings.HasPrefix(c.JournalDSN, "mysql:"):
		return "mysql", strings.TrimPrefix(c.JournalDSN, "mysql:")
	}
	return "sqlite", c.JournalDSN
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Package config loads the server and CLI configuration.
//
// Values come from, in order of precedence: command-line flags (applied by
// the caller), environment variables, a YAML file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cadrimil/engine/internal/logging"
	"github.com/cadrimil/engine/ratesource"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the whole configuration file.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	RateSource RateSourceConfig `yaml:"rate_source"`
	Report     ReportConfig     `yaml:"report"`
	Logging    logging.Config   `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects where missions are kept.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

// RateSourceConfig configures the remote rate table.
type RateSourceConfig struct {
	URL             string        `yaml:"url"`
	Attempts        int           `yaml:"attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DefaultFallback bool          `yaml:"default_fallback"`
	// File, when set, replaces the remote source with a local document.
	File string `yaml:"file"`
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	DefaultFormat string `yaml:"default_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "cadrimil.db",
		},
		RateSource: RateSourceConfig{
			URL:             ratesource.DefaultURL,
			Attempts:        3,
			BaseDelay:       time.Second,
			Timeout:         10 * time.Second,
			RefreshInterval: 6 * time.Hour,
			DefaultFallback: true,
		},
		Report: ReportConfig{
			DefaultFormat: "pdf",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overlays environment variables.
func (c *Config) ApplyEnv() {
	c.Server.Addr = getenv("CADRIMIL_ADDR", c.Server.Addr)
	c.Storage.Driver = getenv("CADRIMIL_DB_DRIVER", c.Storage.Driver)
	c.Storage.Path = getenv("CADRIMIL_DB_PATH", c.Storage.Path)
	c.Storage.DatabaseURL = getenv("DATABASE_URL", c.Storage.DatabaseURL)
	c.RateSource.URL = getenv("CADRIMIL_RATES_URL", c.RateSource.URL)
	c.RateSource.File = getenv("CADRIMIL_RATES_FILE", c.RateSource.File)
	c.RateSource.Attempts = getenvInt("CADRIMIL_RATES_ATTEMPTS", c.RateSource.Attempts)
	c.Logging.Level = getenv("CADRIMIL_LOG_LEVEL", c.Logging.Level)
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage driver %q needs database_url", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateSource.Attempts < 1 {
		return fmt.Errorf("rate_source.attempts must be at least 1, got %d", c.RateSource.Attempts)
	}
	return nil
}

// Fetcher builds the rate fetcher described by the rate source section:
// a local document when File is set, the remote URL otherwise.
func (c RateSourceConfig) Fetcher() ratesource.TableFetcher {
	if c.File != "" {
		return ratesource.FileFetcher{Path: c.File}
	}
	f := ratesource.NewFetcher(c.URL)
	f.Attempts = c.Attempts
	f.BaseDelay = c.BaseDelay
	f.Timeout = c.Timeout
	return f
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Package config provides unified configuration for the OTHD tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration shared by the OTHD command line tools.
type Config struct {
	// LogLevel controls diagnostic verbosity: debug, info, warn, error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Import configuration
	Import ImportConfig `json:"import" yaml:"import"`

	// Staging configuration for remote inputs
	Staging StagingConfig `json:"staging" yaml:"staging"`
}

// ImportConfig holds database creation configuration.
type ImportConfig struct {
	// ProgressInterval is the minimum time between progress reports
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`

	// ExpectedRecords sizes the duplicate estimation filter
	ExpectedRecords int `json:"expected_records" yaml:"expected_records"`

	// CSVDialect is the default dialect for CSV imaging reports
	CSVDialect string `json:"csv_dialect" yaml:"csv_dialect"`
}

// StagingConfig holds access settings for s3:// inputs.
type StagingConfig struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Import: ImportConfig{
			ProgressInterval: 500 * time.Millisecond,
			ExpectedRecords:  1 << 20,
			CSVDialect:       "excel",
		},
		Staging: StagingConfig{},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides. Variables use
// the OTHD_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("OTHD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Import configuration
	if v := os.Getenv("OTHD_PROGRESS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Import.ProgressInterval = d
		}
	}
	if v := os.Getenv("OTHD_EXPECTED_RECORDS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Import.ExpectedRecords)
	}
	if v := os.Getenv("OTHD_CSV_DIALECT"); v != "" {
		cfg.Import.CSVDialect = v
	}

	// Staging configuration
	if v := os.Getenv("OTHD_S3_REGION"); v != "" {
		cfg.Staging.Region = v
	}
	if v := os.Getenv("OTHD_S3_ENDPOINT"); v != "" {
		cfg.Staging.Endpoint = v
	}
	if v := os.Getenv("OTHD_S3_PATH_STYLE"); v != "" {
		cfg.Staging.UsePathStyle = v == "true" || v == "1"
	}
}

// Load builds the effective configuration: defaults, then the optional
// config file, then a .env file if present, then environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadFromEnv(cfg)
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Import.ProgressInterval <= 0 {
		return fmt.Errorf("import.progress_interval must be positive, got %s", c.Import.ProgressInterval)
	}
	if c.Import.ExpectedRecords <= 0 {
		return fmt.Errorf("import.expected_records must be positive, got %d", c.Import.ExpectedRecords)
	}

	return nil
}

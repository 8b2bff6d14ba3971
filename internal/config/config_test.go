package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
	if cfg.Import.ProgressInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms progress interval, got %s", cfg.Import.ProgressInterval)
	}
	if cfg.Import.CSVDialect != "excel" {
		t.Errorf("expected excel dialect, got %s", cfg.Import.CSVDialect)
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `log_level: debug
import:
  csv_dialect: excel-tab
staging:
  region: eu-west-1
  use_path_style: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Import.CSVDialect != "excel-tab" {
		t.Errorf("expected excel-tab dialect, got %s", cfg.Import.CSVDialect)
	}
	if cfg.Staging.Region != "eu-west-1" {
		t.Errorf("expected region override, got %s", cfg.Staging.Region)
	}
	if !cfg.Staging.UsePathStyle {
		t.Error("expected path style override")
	}

	// Unset fields keep their defaults.
	if cfg.Import.ProgressInterval != 500*time.Millisecond {
		t.Errorf("expected default progress interval, got %s", cfg.Import.ProgressInterval)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"log_level": "warn", "import": {"expected_records": 5000}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.LogLevel)
	}
	if cfg.Import.ExpectedRecords != 5000 {
		t.Errorf("expected 5000 expected records, got %d", cfg.Import.ExpectedRecords)
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OTHD_LOG_LEVEL", "error")
	t.Setenv("OTHD_PROGRESS_INTERVAL", "2s")
	t.Setenv("OTHD_EXPECTED_RECORDS", "42")
	t.Setenv("OTHD_CSV_DIALECT", "unix")
	t.Setenv("OTHD_S3_REGION", "us-west-2")
	t.Setenv("OTHD_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("OTHD_S3_PATH_STYLE", "1")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.LogLevel != "error" {
		t.Errorf("expected log level error, got %s", cfg.LogLevel)
	}
	if cfg.Import.ProgressInterval != 2*time.Second {
		t.Errorf("expected 2s interval, got %s", cfg.Import.ProgressInterval)
	}
	if cfg.Import.ExpectedRecords != 42 {
		t.Errorf("expected 42 expected records, got %d", cfg.Import.ExpectedRecords)
	}
	if cfg.Import.CSVDialect != "unix" {
		t.Errorf("expected unix dialect, got %s", cfg.Import.CSVDialect)
	}
	if cfg.Staging.Region != "us-west-2" {
		t.Errorf("expected region override, got %s", cfg.Staging.Region)
	}
	if cfg.Staging.Endpoint != "http://localhost:9000" {
		t.Errorf("expected endpoint override, got %s", cfg.Staging.Endpoint)
	}
	if !cfg.Staging.UsePathStyle {
		t.Error("expected path style override")
	}
}

func TestLoadFromEnv_BadDuration(t *testing.T) {
	t.Setenv("OTHD_PROGRESS_INTERVAL", "not-a-duration")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Import.ProgressInterval != 500*time.Millisecond {
		t.Errorf("expected bad duration to be ignored, got %s", cfg.Import.ProgressInterval)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("OTHD_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected env to win over file, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"zero interval", func(c *Config) { c.Import.ProgressInterval = 0 }, true},
		{"negative interval", func(c *Config) { c.Import.ProgressInterval = -time.Second }, true},
		{"zero expected records", func(c *Config) { c.Import.ExpectedRecords = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COVERS_FORECAST_CONFIG", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":50051" || cfg.Server.HTTPAddress != ":8080" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Batch.MaxSize != 31 || cfg.Batch.Concurrency != 5 {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.Explain.MaxTokens != 500 || cfg.Explain.Temperature != 0.3 {
		t.Fatalf("unexpected explain defaults: %+v", cfg.Explain)
	}
	if cfg.Forecast.IntervalWidth != 0.80 {
		t.Fatalf("unexpected interval width %v", cfg.Forecast.IntervalWidth)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":6000"
batch:
  concurrency: 3
cache:
  enabled: true
  addr: "localhost:6379"
  forecastTTL: 1m
staffing:
  path: "configs/staffing.yaml"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COVERS_FORECAST_HTTP_ADDRESS", ":9090")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("COVERS_FORECAST_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Server.HTTPAddress != ":9090" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Batch.Concurrency != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.Batch.Concurrency)
	}
	if !cfg.Cache.Enabled || cfg.Cache.ForecastTTL != time.Minute {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Explain.APIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.Explain.APIKey)
	}
	if !cfg.Logging.JSON {
		t.Fatal("expected json logging")
	}
	if cfg.Staffing.Path != "configs/staffing.yaml" {
		t.Fatalf("unexpected staffing path %q", cfg.Staffing.Path)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("batch:\n  maxSize: 40\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for batch size")
	}

	t.Setenv("COVERS_FORECAST_CONFIG", "")
	t.Setenv("COVERS_FORECAST_INTERVAL_WIDTH", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for interval width")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

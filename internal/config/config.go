package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the forecast engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Forecast ForecastConfig `yaml:"forecast"`
	Batch    BatchConfig    `yaml:"batch"`
	Analogs  AnalogsConfig  `yaml:"analogs"`
	Explain  ExplainConfig  `yaml:"explain"`
	Staffing StaffingConfig `yaml:"staffing"`
	History  HistoryConfig  `yaml:"history"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig controls gRPC, HTTP and metrics listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ForecastConfig controls the regression model and analog retrieval.
type ForecastConfig struct {
	ModelPath     string  `yaml:"modelPath"`
	IntervalWidth float64 `yaml:"intervalWidth"`
	AnalogLimit   int     `yaml:"analogLimit"`
}

// BatchConfig bounds multi-date requests.
type BatchConfig struct {
	MaxSize     int `yaml:"maxSize"`
	Concurrency int `yaml:"concurrency"`
}

// AnalogsConfig configures the vector search service holding historical days.
type AnalogsConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ExplainConfig configures the text-generation service.
type ExplainConfig struct {
	Enabled           bool          `yaml:"enabled"`
	APIKey            string        `yaml:"apiKey"`
	Model             string        `yaml:"model"`
	MaxTokens         int64         `yaml:"maxTokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// StaffingConfig points at the per-location staffing registry.
type StaffingConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig configures the Postgres training-history store.
type HistoryConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// CacheConfig controls Redis-backed or in-process caching of forecasts and analogs.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ForecastTTL  time.Duration `yaml:"forecastTTL"`
	AnalogsTTL   time.Duration `yaml:"analogsTTL"`
	MemorySize   int           `yaml:"memorySize"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TracingConfig controls the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sampleRate"`
	ServiceName string  `yaml:"serviceName"`
	Environment string  `yaml:"environment"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("COVERS_FORECAST_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Forecast: ForecastConfig{
			ModelPath:     "models/covers-model.json",
			IntervalWidth: 0.80,
			AnalogLimit:   3,
		},
		Batch:   BatchConfig{MaxSize: 31, Concurrency: 5},
		Analogs: AnalogsConfig{Timeout: 5 * time.Second},
		Explain: ExplainConfig{
			Enabled:           true,
			Model:             "claude-3-5-haiku-20241022",
			MaxTokens:         500,
			Temperature:       0.3,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		History: HistoryConfig{Table: "daily_covers"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ForecastTTL:  5 * time.Minute,
			AnalogsTTL:   10 * time.Minute,
			MemorySize:   1024,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "covers-forecast",
			Environment: "development",
		},
	}
}

func (c Config) validate() error {
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.intervalWidth must be in (0,1), got %v", c.Forecast.IntervalWidth)
	}
	if c.Batch.MaxSize <= 0 || c.Batch.MaxSize > 31 {
		return fmt.Errorf("batch.maxSize must be in [1,31], got %d", c.Batch.MaxSize)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sampleRate must be in [0,1], got %v", c.Tracing.SampleRate)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COVERS_FORECAST_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("COVERS_FORECAST_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("COVERS_FORECAST_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("COVERS_FORECAST_MODEL_PATH"); v != "" {
		cfg.Forecast.ModelPath = v
	}
	if v := os.Getenv("COVERS_FORECAST_INTERVAL_WIDTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Forecast.IntervalWidth = f
		}
	}
	if v := os.Getenv("COVERS_FORECAST_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Concurrency = n
		}
	}
	if v := os.Getenv("COVERS_FORECAST_ANALOGS_URL"); v != "" {
		cfg.Analogs.Endpoint = v
	}
	if v := os.Getenv("COVERS_FORECAST_ANALOGS_API_KEY"); v != "" {
		cfg.Analogs.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Explain.APIKey == "" {
		cfg.Explain.APIKey = v
	}
	if v := os.Getenv("COVERS_FORECAST_EXPLAIN_API_KEY"); v != "" {
		cfg.Explain.APIKey = v
	}
	if v := os.Getenv("COVERS_FORECAST_EXPLAIN_MODEL"); v != "" {
		cfg.Explain.Model = v
	}
	if v := os.Getenv("COVERS_FORECAST_EXPLAIN_ENABLED"); v != "" {
		cfg.Explain.Enabled = parseBool(v)
	}
	if v := os.Getenv("COVERS_FORECAST_STAFFING_PATH"); v != "" {
		cfg.Staffing.Path = v
	}
	if v := os.Getenv("COVERS_FORECAST_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("COVERS_FORECAST_HISTORY_TABLE"); v != "" {
		cfg.History.Table = v
	}
	if v := os.Getenv("COVERS_FORECAST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COVERS_FORECAST_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_FORECAST_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ForecastTTL = d
		}
	}
	if v := os.Getenv("COVERS_FORECAST_CACHE_ANALOGS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AnalogsTTL = d
		}
	}
	if v := os.Getenv("COVERS_FORECAST_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("COVERS_FORECAST_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

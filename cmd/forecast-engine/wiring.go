package main

import (
	"errors"
	"log/slog"

	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/config"
	"github.com/miradorstack/covers-forecast/internal/engine"
	"github.com/miradorstack/covers-forecast/internal/explain"
	"github.com/miradorstack/covers-forecast/internal/metrics"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/repo"
	"github.com/miradorstack/covers-forecast/internal/services"
	"github.com/miradorstack/covers-forecast/internal/staffing"
)

// components are the long-lived pieces shared by serve and forecast.
type components struct {
	cache    cache.Provider
	model    *engine.Model
	analogs  *repo.WeaviateRepo
	staffing *staffing.Registry
	pipeline *engine.Pipeline
	service  *services.ForecastService
}

func (c *components) Close() {
	if c.cache != nil {
		_ = c.cache.Close()
	}
}

func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	registry, err := staffing.LoadRegistry(cfg.Staffing.Path, logger)
	if err != nil {
		return nil, err
	}

	provider := buildCache(cfg.Cache, logger)
	model := loadModel(cfg.Forecast, logger)
	analogRepo := repo.NewWeaviateRepo(cfg.Analogs.Endpoint, cfg.Analogs.APIKey, cfg.Analogs.Timeout, provider, cfg.Cache.AnalogsTTL, logger)
	explainer := explain.NewExplainer(buildTextGenerator(cfg.Explain, logger), logger)

	pipeline := engine.NewPipeline(logger, analogRepo, model, explainer, registry).
		WithAnalogLimit(cfg.Forecast.AnalogLimit)

	forecastTTL := cfg.Cache.ForecastTTL
	if !cfg.Cache.Enabled {
		forecastTTL = 0
	}
	service := services.NewForecastService(logger, pipeline, services.Options{
		Cache:            provider,
		ForecastTTL:      forecastTTL,
		BatchConcurrency: cfg.Batch.Concurrency,
		BatchMaxSize:     cfg.Batch.MaxSize,
		Staffing:         registry,
		Model:            model,
	})

	return &components{
		cache:    provider,
		model:    model,
		analogs:  analogRepo,
		staffing: registry,
		pipeline: pipeline,
		service:  service,
	}, nil
}

// buildCache prefers Redis, then the in-process LRU, then no caching.
func buildCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err == nil {
			return provider
		}
		logger.Warn("redis cache unavailable, using in-process cache", slog.Any("error", err))
	}
	provider, err := cache.NewMemoryProvider(cfg.MemorySize)
	if err != nil {
		logger.Warn("in-process cache unavailable", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}

func loadModel(cfg config.ForecastConfig, logger *slog.Logger) *engine.Model {
	opts := engine.DefaultModelOptions()
	opts.IntervalWidth = cfg.IntervalWidth
	opts.Logger = logger
	model := engine.NewModel(opts)

	if cfg.ModelPath != "" {
		if err := model.Load(cfg.ModelPath); err != nil {
			if errors.Is(err, models.ErrModelNotFound) {
				logger.Info("no trained model, forecasts use the weighted average", slog.String("path", cfg.ModelPath))
			} else {
				logger.Warn("model artifact rejected", slog.String("path", cfg.ModelPath), slog.Any("error", err))
			}
		}
	}
	metrics.SetModelTrained(model.IsTrained())
	return model
}

func buildTextGenerator(cfg config.ExplainConfig, logger *slog.Logger) explain.TextGenerator {
	if !cfg.Enabled || cfg.APIKey == "" {
		logger.Info("text generation disabled, explanations use the local template")
		return nil
	}
	return explain.NewAnthropicGenerator(explain.AnthropicConfig{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		Temperature:       cfg.Temperature,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
}

package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/covers-forecast/internal/batch"
	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/metrics"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/staffing"
	"github.com/miradorstack/covers-forecast/internal/synth"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const latencyLogEvery = 20

// Options tune the service facade.
type Options struct {
	Cache            cache.Provider
	ForecastTTL      time.Duration
	BatchConcurrency int
	BatchMaxSize     int
	Staffing         StaffingResolver
	Model            ModelState
}

// StaffingResolver returns the staffing configuration of a location.
type StaffingResolver interface {
	ForLocation(locationID string) models.StaffingConfig
}

// ModelState reports whether a trained regression model is loaded.
type ModelState interface {
	IsTrained() bool
}

// ForecastService is the inbound contract shared by the gRPC, HTTP and CLI surfaces.
type ForecastService struct {
	logger       *slog.Logger
	pipeline     batch.Runner
	orchestrator *batch.Orchestrator
	cache        cache.Provider
	forecastTTL  time.Duration
	concurrency  int
	maxSize      int
	staffing     StaffingResolver
	model        ModelState
	latencies    *utils.LatencyTracker
}

// NewForecastService constructs the forecast service facade.
func NewForecastService(logger *slog.Logger, pipeline batch.Runner, opts Options) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = batch.DefaultConcurrency
	}
	if opts.BatchMaxSize <= 0 || opts.BatchMaxSize > batch.MaxSize {
		opts.BatchMaxSize = batch.MaxSize
	}
	s := &ForecastService{
		logger:      logger,
		pipeline:    pipeline,
		cache:       opts.Cache,
		forecastTTL: opts.ForecastTTL,
		concurrency: opts.BatchConcurrency,
		maxSize:     opts.BatchMaxSize,
		staffing:    opts.Staffing,
		model:       opts.Model,
		latencies:   utils.NewLatencyTracker(1024),
	}
	s.orchestrator = batch.NewOrchestrator(runnerFunc(s.forecast), logger).WithMaxSize(opts.BatchMaxSize)
	return s
}

// ForecastOne runs the full pipeline for one date. Malformed input returns a
// *models.ValidationError.
func (s *ForecastService) ForecastOne(ctx context.Context, locationID, serviceDate, servicePeriod string) (models.Prediction, error) {
	req, err := parseRequest(locationID, serviceDate, servicePeriod)
	if err != nil {
		return models.Prediction{}, err
	}
	return s.forecast(ctx, req)
}

// ForecastBatch forecasts up to the configured batch cap (31 by default). Unparseable dates are
// skipped with a warning; per-date failures come back as Failed outcomes.
func (s *ForecastService) ForecastBatch(ctx context.Context, locationID string, dates []string, servicePeriod string) ([]models.BatchOutcome, error) {
	period, err := models.ParseServicePeriod(servicePeriod)
	if err != nil {
		return nil, err
	}
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, &models.ValidationError{Field: "location_id", Reason: "is required"}
	}
	if s.pipeline == nil {
		return nil, utils.NewAppError("ForecastBatch", "pipeline not configured", nil)
	}

	parsed := make([]time.Time, 0, len(dates))
	for _, raw := range dates {
		d, err := utils.ParseISODate(raw)
		if err != nil {
			s.logger.Warn("skipping unparseable date", slog.String("value", raw), slog.Any("error", err))
			continue
		}
		parsed = append(parsed, d)
	}
	if len(parsed) > s.maxSize {
		s.logger.Warn("batch capped", slog.Int("requested", len(parsed)), slog.Int("max", s.maxSize))
		parsed = parsed[:s.maxSize]
	}

	return s.orchestrator.Run(ctx, parsed, batch.Params{LocationID: locationID, ServicePeriod: period}, s.concurrency)
}

// Staffing computes a staff plan for covers at a location.
func (s *ForecastService) Staffing(locationID string, covers int) (models.StaffPlan, error) {
	cfg := models.DefaultStaffingConfig()
	if s.staffing != nil {
		cfg = s.staffing.ForLocation(locationID)
	}
	plan, err := staffing.Recommend(covers, cfg)
	if err != nil {
		return models.StaffPlan{}, &models.ValidationError{Field: "covers", Reason: err.Error()}
	}
	return plan, nil
}

// Context returns the synthesized context for a date.
func (s *ForecastService) Context(serviceDate string) (models.ContextSnapshot, error) {
	date, err := utils.ParseISODate(serviceDate)
	if err != nil {
		return models.ContextSnapshot{}, &models.ValidationError{Field: "service_date", Reason: err.Error()}
	}
	return synth.Synthesize(date), nil
}

// ModelTrained reports whether the regression model is loaded.
func (s *ForecastService) ModelTrained() bool {
	return s.model != nil && s.model.IsTrained()
}

// Latency summarises recent single-date forecast latencies.
func (s *ForecastService) Latency() utils.LatencySummary {
	return s.latencies.Summary()
}

func (s *ForecastService) forecast(ctx context.Context, req models.ForecastRequest) (models.Prediction, error) {
	if s.pipeline == nil {
		return models.Prediction{}, utils.NewAppError("Forecast", "pipeline not configured", nil)
	}

	key := cacheForecastKey(req)
	if s.forecastTTL > 0 {
		if cached, err := cache.GetJSON[models.Prediction](ctx, s.cache, key); err == nil {
			return cached, nil
		}
	}

	start := time.Now()
	prediction, err := s.pipeline.Forecast(ctx, req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveForecast(duration, "", metrics.OutcomeError)
		s.logger.Error("forecast failed", slog.String("date", utils.FormatDate(req.ServiceDate)), slog.Any("error", err))
		return models.Prediction{}, utils.WrapOp("Forecast", err)
	}

	outcome := metrics.OutcomeSuccess
	if prediction.Outcome.IsDegraded() {
		outcome = metrics.OutcomeDegraded
	}
	metrics.ObserveForecast(duration, string(prediction.Outcome.Result.Method), outcome)
	s.observeLatency(duration)

	if s.forecastTTL > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, prediction, s.forecastTTL); err != nil {
			s.logger.Debug("forecast cache write failed", slog.Any("error", err))
		}
	}
	return prediction, nil
}

// observeLatency records d and logs the p95 every latencyLogEvery forecasts.
// It reports whether a summary was logged.
func (s *ForecastService) observeLatency(d time.Duration) bool {
	if s.latencies.Observe(d)%latencyLogEvery != 0 {
		return false
	}
	summary := s.latencies.Summary()
	s.logger.Info("forecast latency", slog.Duration("p95", summary.P95), slog.Int("samples", summary.Count))
	return true
}

func parseRequest(locationID, serviceDate, servicePeriod string) (models.ForecastRequest, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return models.ForecastRequest{}, &models.ValidationError{Field: "location_id", Reason: "is required"}
	}
	date, err := utils.ParseISODate(serviceDate)
	if err != nil {
		return models.ForecastRequest{}, &models.ValidationError{Field: "service_date", Reason: err.Error()}
	}
	period, err := models.ParseServicePeriod(servicePeriod)
	if err != nil {
		return models.ForecastRequest{}, err
	}
	return models.ForecastRequest{LocationID: locationID, ServiceDate: date, ServicePeriod: period}, nil
}

func cacheForecastKey(req models.ForecastRequest) string {
	return cache.Key("forecast", req.LocationID, string(req.ServicePeriod), utils.FormatDate(req.ServiceDate))
}

type runnerFunc func(ctx context.Context, req models.ForecastRequest) (models.Prediction, error)

func (f runnerFunc) Forecast(ctx context.Context, req models.ForecastRequest) (models.Prediction, error) {
	return f(ctx, req)
}

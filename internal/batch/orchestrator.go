package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/covers-forecast/internal/metrics"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const (
	// MaxSize is the largest number of dates a batch may carry.
	MaxSize = 31
	// DefaultConcurrency bounds in-flight pipelines when the caller passes no limit.
	DefaultConcurrency = 5
)

var tracer = otel.Tracer("github.com/miradorstack/covers-forecast/internal/batch")

// Runner executes the per-date pipeline.
type Runner interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (models.Prediction, error)
}

// Params are the request fields shared by every date of a batch.
type Params struct {
	LocationID    string
	ServicePeriod models.ServicePeriod
}

// Orchestrator fans a date list out over a bounded set of pipelines.
type Orchestrator struct {
	runner  Runner
	logger  *slog.Logger
	maxSize int
}

// NewOrchestrator builds an orchestrator around runner.
func NewOrchestrator(runner Runner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{runner: runner, logger: logger, maxSize: MaxSize}
}

// WithMaxSize lowers the batch cap. Values outside [1, MaxSize] are ignored.
func (o *Orchestrator) WithMaxSize(n int) *Orchestrator {
	if n > 0 && n <= MaxSize {
		o.maxSize = n
	}
	return o
}

// Run forecasts each date and returns outcomes in input order. Only a
// malformed batch fails as a whole; per-date errors and panics become Failed
// outcomes carrying a placeholder prediction.
func (o *Orchestrator) Run(ctx context.Context, dates []time.Time, params Params, maxConcurrency int) ([]models.BatchOutcome, error) {
	if o.runner == nil {
		return nil, fmt.Errorf("batch runner not configured")
	}
	shared := models.ForecastRequest{
		LocationID:    params.LocationID,
		ServiceDate:   time.Unix(0, 0).UTC(),
		ServicePeriod: params.ServicePeriod,
	}
	if err := shared.Validate(); err != nil {
		return nil, err
	}
	if len(dates) > o.maxSize {
		o.logger.Warn("batch truncated", slog.Int("requested", len(dates)), slog.Int("max", o.maxSize))
		dates = dates[:o.maxSize]
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}

	ctx, span := tracer.Start(ctx, "batch.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("location_id", params.LocationID),
		attribute.Int("dates", len(dates)),
		attribute.Int("concurrency", maxConcurrency),
	)

	outcomes := make([]models.BatchOutcome, len(dates))
	for i, date := range dates {
		outcomes[i] = models.BatchOutcome{Date: utils.DateOnly(date), Status: models.BatchPending}
	}

	// Go blocks once the limit is reached, so dates are admitted in input order.
	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i := range outcomes {
		g.Go(func() error {
			o.runItem(ctx, &outcomes[i], shared)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (o *Orchestrator) runItem(ctx context.Context, out *models.BatchOutcome, shared models.ForecastRequest) {
	req := shared
	req.ServiceDate = out.Date
	out.Status = models.BatchRunning

	prediction, err := o.forecast(ctx, req)
	if err != nil {
		itemErr := &models.BatchItemError{Date: out.Date, Err: err}
		o.logger.Warn("batch item failed",
			slog.String("date", utils.FormatDate(out.Date)), slog.Any("error", err))
		out.Status = models.BatchFailed
		out.Prediction = models.PlaceholderPrediction(req)
		out.Error = itemErr.Error()
	} else {
		out.Status = models.BatchCompleted
		out.Prediction = prediction
	}
	metrics.ObserveBatchItem(string(out.Status))
}

func (o *Orchestrator) forecast(ctx context.Context, req models.ForecastRequest) (prediction models.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("batch item panicked",
				slog.String("date", utils.FormatDate(req.ServiceDate)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	return o.runner.Forecast(ctx, req)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/miradorstack/covers-forecast/internal/analogs"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/staffing"
	"github.com/miradorstack/covers-forecast/internal/synth"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const reasonNoAnalogs = "no analogs available"

var tracer = otel.Tracer("github.com/miradorstack/covers-forecast/internal/engine")

// AnalogSource returns historical days comparable to the request.
type AnalogSource interface {
	FindAnalogs(ctx context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot, limit int) ([]models.AnalogDay, error)
}

// Predictor is the trained regression model as seen by the pipeline.
type Predictor interface {
	IsTrained() bool
	Predict(date time.Time, regressors map[string]float64) (models.ForecastResult, error)
}

// Explainer turns a forecast into prose. Implementations never fail; they
// fall back to a local template instead.
type Explainer interface {
	Explain(ctx context.Context, result models.ForecastResult, req models.ForecastRequest, snapshot models.ContextSnapshot, analogs []models.AnalogDay) models.Explanation
}

// StaffingResolver returns the staffing configuration of a location.
type StaffingResolver interface {
	ForLocation(locationID string) models.StaffingConfig
}

// Pipeline produces one prediction per request: context, analogs, forecast,
// explanation and staffing.
type Pipeline struct {
	logger      *slog.Logger
	analogs     AnalogSource
	local       *analogs.Generator
	model       Predictor
	explainer   Explainer
	staffing    StaffingResolver
	analogLimit int
	now         func() time.Time
}

// NewPipeline wires a pipeline. A nil analog source uses the local generator,
// a nil model always degrades to the weighted average and a nil staffing
// resolver uses the default configuration.
func NewPipeline(logger *slog.Logger, source AnalogSource, model Predictor, explainer Explainer, resolver StaffingResolver) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	local := analogs.NewGenerator()
	if source == nil {
		source = local
	}
	return &Pipeline{
		logger:      logger,
		analogs:     source,
		local:       local,
		model:       model,
		explainer:   explainer,
		staffing:    resolver,
		analogLimit: analogs.Count,
		now:         time.Now,
	}
}

// WithAnalogLimit sets how many analogs are requested per forecast.
func (p *Pipeline) WithAnalogLimit(n int) *Pipeline {
	if n > 0 {
		p.analogLimit = n
	}
	return p
}

// Forecast runs the full flow for one request.
func (p *Pipeline) Forecast(ctx context.Context, req models.ForecastRequest) (models.Prediction, error) {
	if err := req.Validate(); err != nil {
		return models.Prediction{}, err
	}
	req.ServiceDate = utils.DateOnly(req.ServiceDate)
	dateKey := utils.FormatDate(req.ServiceDate)

	ctx, span := tracer.Start(ctx, "pipeline.forecast")
	defer span.End()
	span.SetAttributes(
		attribute.String("location_id", req.LocationID),
		attribute.String("service_date", dateKey),
		attribute.String("service_period", string(req.ServicePeriod)),
	)

	snapshot := synth.Synthesize(req.ServiceDate)
	found := p.findAnalogs(ctx, req, snapshot)

	outcome := p.forecast(ctx, req, snapshot, found)
	span.SetAttributes(
		attribute.String("outcome", string(outcome.Kind)),
		attribute.String("method", string(outcome.Result.Method)),
		attribute.Int("predicted_covers", outcome.Result.PredictedCovers),
	)

	explanation := p.explain(ctx, outcome.Result, req, snapshot, found)

	cfg := models.DefaultStaffingConfig()
	if p.staffing != nil {
		cfg = p.staffing.ForLocation(req.LocationID)
	}
	plan, err := staffing.Recommend(outcome.Result.PredictedCovers, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "staffing")
		return models.Prediction{}, fmt.Errorf("staffing for %s: %w", dateKey, err)
	}

	return models.Prediction{
		ID:          uuid.NewString(),
		Request:     req,
		Context:     snapshot,
		Outcome:     outcome,
		Explanation: explanation,
		Staffing:    plan,
		GeneratedAt: p.now().UTC(),
	}, nil
}

func (p *Pipeline) findAnalogs(ctx context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot) []models.AnalogDay {
	ctx, span := tracer.Start(ctx, "pipeline.analogs")
	defer span.End()

	found, err := p.analogs.FindAnalogs(ctx, req, snapshot, p.analogLimit)
	if err != nil {
		p.logger.Warn("analog source failed, using local generator",
			slog.String("date", utils.FormatDate(req.ServiceDate)), slog.Any("error", err))
		span.RecordError(err)
		found, _ = p.local.FindAnalogs(ctx, req, snapshot, p.analogLimit)
	}
	span.SetAttributes(attribute.Int("analogs", len(found)))
	return found
}

func (p *Pipeline) forecast(ctx context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot, found []models.AnalogDay) models.ForecastOutcome {
	_, span := tracer.Start(ctx, "pipeline.predict")
	defer span.End()

	reason := models.ErrNotTrained.Error()
	if p.model != nil && p.model.IsTrained() {
		result, err := p.model.Predict(req.ServiceDate, RegressorsFromContext(snapshot))
		if err == nil {
			if len(found) > 0 {
				result.AnalogsUsed = found
			}
			return models.Success(result)
		}
		if !errors.Is(err, models.ErrNotTrained) {
			p.logger.Warn("regression predict failed, using weighted average",
				slog.String("date", utils.FormatDate(req.ServiceDate)), slog.Any("error", err))
			span.RecordError(err)
		}
		reason = err.Error()
	}

	if len(found) == 0 {
		reason = reasonNoAnalogs
	}
	return models.Degraded(WithAnalogInterval(WeightedAverage(found)), reason)
}

func (p *Pipeline) explain(ctx context.Context, result models.ForecastResult, req models.ForecastRequest, snapshot models.ContextSnapshot, found []models.AnalogDay) models.Explanation {
	if p.explainer == nil {
		return models.Explanation{Source: models.ExplanationTemplate}
	}
	ctx, span := tracer.Start(ctx, "pipeline.explain")
	defer span.End()
	explanation := p.explainer.Explain(ctx, result, req, snapshot, found)
	span.SetAttributes(attribute.String("source", string(explanation.Source)))
	return explanation
}

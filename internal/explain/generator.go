package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miradorstack/covers-forecast/internal/metrics"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// TextGenerator produces prose for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Explainer justifies forecasts, preferring the text generator and falling
// back to a deterministic template.
type Explainer struct {
	text   TextGenerator
	logger *slog.Logger
}

// NewExplainer builds an explainer. A nil generator always uses the template.
func NewExplainer(text TextGenerator, logger *slog.Logger) *Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explainer{text: text, logger: logger}
}

// Explain never fails: generator errors and empty replies degrade to the template.
func (e *Explainer) Explain(ctx context.Context, result models.ForecastResult, req models.ForecastRequest, snapshot models.ContextSnapshot, analogs []models.AnalogDay) models.Explanation {
	explanation := models.Explanation{
		ConfidenceFactors: ConfidenceFactors(snapshot, analogs),
		Source:            models.ExplanationTemplate,
	}

	if e != nil && e.text != nil {
		summary, err := e.text.Generate(ctx, BuildPrompt(result, req, snapshot, analogs))
		summary = strings.TrimSpace(summary)
		switch {
		case err != nil:
			e.logger.Warn("text generation failed, using template",
				slog.String("date", utils.FormatDate(req.ServiceDate)), slog.Any("error", err))
		case summary == "":
			e.logger.Warn("text generation returned no text, using template",
				slog.String("date", utils.FormatDate(req.ServiceDate)))
		default:
			explanation.Summary = summary
			explanation.Source = models.ExplanationGenerated
		}
	}

	if explanation.Source == models.ExplanationTemplate {
		explanation.Summary = TemplateSummary(result, len(analogs))
	}
	metrics.ObserveExplanation(string(explanation.Source))
	return explanation
}

// ConfidenceLabel grades a confidence as High (>0.85), Medium (>0.70) or Moderate.
func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence > 0.85:
		return "High"
	case confidence > 0.70:
		return "Medium"
	default:
		return "Moderate"
	}
}

// TemplateSummary is the deterministic summary used without the text generator.
func TemplateSummary(result models.ForecastResult, analogCount int) string {
	return fmt.Sprintf("%s confidence (%d%%) based on %d similar historical patterns averaging %d covers.",
		ConfidenceLabel(result.Confidence), percent(result.Confidence), analogCount, result.PredictedCovers)
}

// ConfidenceFactors lists the local evidence behind a forecast. It is never
// empty when the snapshot or analogs carry information.
func ConfidenceFactors(snapshot models.ContextSnapshot, analogs []models.AnalogDay) []string {
	factors := make([]string, 0, 4)
	if snapshot.DayOfWeek != "" {
		factors = append(factors, fmt.Sprintf("Similar %s patterns", snapshot.DayOfWeek))
	}
	if len(snapshot.Events) > 0 {
		first := snapshot.Events[0]
		factors = append(factors, fmt.Sprintf("%s nearby (%.1fkm)", first.Type, first.DistanceKm))
	}
	if snapshot.Weather.Condition != "" {
		factors = append(factors, "Weather: "+snapshot.Weather.Condition)
	}
	if len(analogs) > 0 {
		var sum float64
		for _, a := range analogs {
			sum += a.Similarity
		}
		switch avg := sum / float64(len(analogs)); {
		case avg > 0.9:
			factors = append(factors, "Very similar historical patterns")
		case avg > 0.8:
			factors = append(factors, "Similar historical patterns")
		}
		if len(factors) == 0 {
			factors = append(factors, "Historical patterns")
		}
	}
	return factors
}

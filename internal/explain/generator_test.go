package explain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/covers-forecast/internal/models"
)

type fakeText struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeText) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func sampleInputs() (models.ForecastResult, models.ForecastRequest, models.ContextSnapshot, []models.AnalogDay) {
	result := models.ForecastResult{PredictedCovers: 142, IntervalLow: 132, IntervalHigh: 152, Confidence: 0.88, Method: models.MethodWeightedAverage}
	req := models.ForecastRequest{
		LocationID:    "paris-11",
		ServiceDate:   time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC),
		ServicePeriod: models.PeriodDinner,
	}
	snapshot := models.ContextSnapshot{
		DayOfWeek: "Saturday",
		DayType:   models.DayTypeWeekend,
		Weather:   models.Weather{Condition: models.WeatherRain, Temperature: 18, PrecipitationPct: 70, WindSpeed: 12},
		Events: []models.Event{{
			Type: "Concert", Name: "Coldplay", DistanceKm: 3.2, ExpectedAttendance: 50000,
			StartTime: "20:00", Impact: models.ImpactHigh,
		}},
	}
	analogs := []models.AnalogDay{
		{ID: "pat_001", Date: time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC), Label: "Concert nearby", ObservedCovers: 150, Similarity: 0.93},
		{ID: "pat_002", Date: time.Date(2024, time.December, 16, 0, 0, 0, 0, time.UTC), Label: "Concert nearby", ObservedCovers: 140, Similarity: 0.91},
		{ID: "pat_003", Date: time.Date(2024, time.September, 17, 0, 0, 0, 0, time.UTC), Label: "Concert nearby", ObservedCovers: 135, Similarity: 0.90},
	}
	return result, req, snapshot, analogs
}

func TestExplainUsesGeneratedText(t *testing.T) {
	text := &fakeText{reply: "  High confidence for this Saturday dinner.  "}
	result, req, snapshot, analogs := sampleInputs()

	got := NewExplainer(text, nil).Explain(context.Background(), result, req, snapshot, analogs)

	assert.Equal(t, models.ExplanationGenerated, got.Source)
	assert.Equal(t, "High confidence for this Saturday dinner.", got.Summary)
	assert.Equal(t, []string{
		"Similar Saturday patterns",
		"Concert nearby (3.2km)",
		"Weather: Rain",
		"Very similar historical patterns",
	}, got.ConfidenceFactors)
	require.Len(t, text.prompts, 1)
}

func TestExplainFallsBackToTemplate(t *testing.T) {
	result, req, snapshot, analogs := sampleInputs()

	for name, text := range map[string]TextGenerator{
		"error":     &fakeText{err: errors.New("503 overloaded")},
		"empty":     &fakeText{reply: "   "},
		"no client": nil,
	} {
		t.Run(name, func(t *testing.T) {
			got := NewExplainer(text, nil).Explain(context.Background(), result, req, snapshot, analogs)
			assert.Equal(t, models.ExplanationTemplate, got.Source)
			assert.Equal(t, "High confidence (88%) based on 3 similar historical patterns averaging 142 covers.", got.Summary)
			assert.NotEmpty(t, got.ConfidenceFactors)
		})
	}
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, "High", ConfidenceLabel(0.86))
	assert.Equal(t, "Medium", ConfidenceLabel(0.85))
	assert.Equal(t, "Medium", ConfidenceLabel(0.71))
	assert.Equal(t, "Moderate", ConfidenceLabel(0.70))
	assert.Equal(t, "Moderate", ConfidenceLabel(0.60))
}

func TestTemplateSummaryFallbackForecast(t *testing.T) {
	got := TemplateSummary(models.ForecastResult{PredictedCovers: 120, Confidence: 0.60}, 0)
	assert.Equal(t, "Moderate confidence (60%) based on 0 similar historical patterns averaging 120 covers.", got)
}

func TestConfidenceFactorsNeverEmptyWithAnalogs(t *testing.T) {
	analogs := []models.AnalogDay{{ObservedCovers: 100, Similarity: 0.5}}
	assert.Equal(t, []string{"Historical patterns"}, ConfidenceFactors(models.ContextSnapshot{}, analogs))
	assert.Empty(t, ConfidenceFactors(models.ContextSnapshot{}, nil))
}

func TestConfidenceFactorsSimilarityTiers(t *testing.T) {
	snapshot := models.ContextSnapshot{DayOfWeek: "Tuesday"}
	mid := []models.AnalogDay{{Similarity: 0.85}, {Similarity: 0.86}}
	assert.Contains(t, ConfidenceFactors(snapshot, mid), "Similar historical patterns")

	low := []models.AnalogDay{{Similarity: 0.7}}
	assert.Equal(t, []string{"Similar Tuesday patterns"}, ConfidenceFactors(snapshot, low))
}

func TestBuildPrompt(t *testing.T) {
	result, req, snapshot, analogs := sampleInputs()
	prompt := BuildPrompt(result, req, snapshot, analogs)

	for _, want := range []string{
		"- Date: Saturday, June 14, 2025 (dinner)",
		"- Predicted covers: 142",
		"- Confidence: 88%",
		"- 2025-03-16 (Concert nearby): 150 covers, 93% similar",
		"  - Concert: Coldplay (3.2km, 50,000 attendees, 20:00, high impact)",
		"- Weather: Rain, 18°C, 70% precipitation, 12km/h wind",
		"- Day: Saturday (weekend)",
		"- Holiday: No",
		"Do NOT recompute",
		"YOUR EXPLANATION:",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestBuildPromptWithoutEventsOrAnalogs(t *testing.T) {
	result, req, snapshot, _ := sampleInputs()
	snapshot.Events = nil
	snapshot.IsHoliday = true
	snapshot.HolidayName = "Bastille Day"

	prompt := BuildPrompt(result, req, snapshot, nil)
	assert.Contains(t, prompt, "  - No major events")
	assert.Contains(t, prompt, "No comparable historical days")
	assert.Contains(t, prompt, "- Holiday: Yes (Bastille Day)")
	assert.Equal(t, 1, strings.Count(prompt, "EXAMPLE OUTPUT"))
}

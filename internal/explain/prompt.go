package explain

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/miradorstack/covers-forecast/internal/models"
)

const promptAnalogs = 3

var printer = message.NewPrinter(language.English)

// BuildPrompt renders the text-generation prompt. The forecast number is
// fixed; the prompt asks only for a justification.
func BuildPrompt(result models.ForecastResult, req models.ForecastRequest, snapshot models.ContextSnapshot, analogs []models.AnalogDay) string {
	pct := percent(result.Confidence)

	var b strings.Builder
	b.WriteString("You are an expert restaurant operations assistant. Generate a concise explanation for a staffing prediction.\n\n")

	b.WriteString("PREDICTION DETAILS:\n")
	fmt.Fprintf(&b, "- Date: %s (%s)\n", req.ServiceDate.Format("Monday, January 02, 2006"), req.ServicePeriod)
	fmt.Fprintf(&b, "- Predicted covers: %d\n", result.PredictedCovers)
	fmt.Fprintf(&b, "- Expected range: %d to %d covers\n", result.IntervalLow, result.IntervalHigh)
	fmt.Fprintf(&b, "- Confidence: %d%%\n\n", pct)

	b.WriteString("SIMILAR HISTORICAL PATTERNS:\n")
	if len(analogs) == 0 {
		b.WriteString("- No comparable historical days available\n")
	}
	for i, a := range analogs {
		if i == promptAnalogs {
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %d covers, %d%% similar\n",
			a.Date.Format("2006-01-02"), analogLabel(a), a.ObservedCovers, percent(a.Similarity))
	}

	b.WriteString("\nEXTERNAL CONTEXT:\n")
	fmt.Fprintf(&b, "- Day: %s (%s)\n", snapshot.DayOfWeek, snapshot.DayType)
	b.WriteString("- Events nearby:\n")
	if len(snapshot.Events) == 0 {
		b.WriteString("  - No major events\n")
	}
	for _, e := range snapshot.Events {
		b.WriteString(printer.Sprintf("  - %s: %s (%.1fkm, %d attendees, %s, %s impact)\n",
			e.Type, e.Name, e.DistanceKm, e.ExpectedAttendance, e.StartTime, e.Impact))
	}
	w := snapshot.Weather
	fmt.Fprintf(&b, "- Weather: %s, %d°C, %d%% precipitation, %dkm/h wind\n",
		w.Condition, w.Temperature, w.PrecipitationPct, w.WindSpeed)
	holiday := "No"
	if snapshot.IsHoliday {
		holiday = "Yes"
		if snapshot.HolidayName != "" {
			holiday = "Yes (" + snapshot.HolidayName + ")"
		}
	}
	fmt.Fprintf(&b, "- Holiday: %s\n\n", holiday)

	fmt.Fprintf(&b, "TASK: Write a 2-3 sentence explanation for WHY we predict %d covers with %d%% confidence.\n\n", result.PredictedCovers, pct)
	b.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- Do NOT recompute or change the prediction; %d covers is final. Only justify it\n", result.PredictedCovers)
	b.WriteString("- Start with confidence level (High/Medium/Low)\n")
	b.WriteString("- Reference the most relevant pattern(s)\n")
	b.WriteString("- Explain key factors (events, weather, day of week)\n")
	b.WriteString("- Keep it concise and actionable for restaurant managers\n")
	b.WriteString("- NO jargon, NO technical terms\n\n")

	b.WriteString("EXAMPLE OUTPUT:\n")
	b.WriteString("\"High confidence (88%) for this Saturday dinner. Three similar Saturday evenings with nearby concerts averaged 145 covers. ")
	b.WriteString("The Coldplay concert 3.2km away with 50K attendance will likely drive post-event dining demand, though rain may slightly reduce walk-ins.\"\n\n")
	b.WriteString("YOUR EXPLANATION:")
	return b.String()
}

func analogLabel(a models.AnalogDay) string {
	if a.Label != "" {
		return a.Label
	}
	return "Regular service"
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

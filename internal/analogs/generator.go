package analogs

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/synth"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const (
	// Count is the number of analogs synthesized per request.
	Count = 3

	minObservedCovers = 30
	coverJitter       = 10
	eventBoost        = 15
	rainPenalty       = 10
	heavyRainPenalty  = 20
)

type coverRange struct{ lo, hi int }

var dayTypeBase = map[models.DayType]coverRange{
	models.DayTypeWeekend: {130, 160},
	models.DayTypeFriday:  {120, 145},
	models.DayTypeWeekday: {100, 130},
}

var holidayBase = map[string]coverRange{
	synth.HolidayChristmasEve: {40, 70},
	synth.HolidayChristmas:    {40, 70},
	synth.HolidayNewYearsEve:  {180, 220},
	synth.HolidayNewYearsDay:  {50, 80},
}

// Generator synthesizes comparable past days from the context snapshot.
type Generator struct{}

// NewGenerator returns the synthetic analog generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns three analogs sorted by similarity, highest first. The
// output depends only on the service date and the snapshot.
func (g *Generator) Generate(req models.ForecastRequest, snapshot models.ContextSnapshot) []models.AnalogDay {
	rng := synth.NewStream(req.ServiceDate, synth.SaltAnalogs)
	base := BaseCovers(rng, snapshot)
	label := Label(snapshot)

	out := make([]models.AnalogDay, 0, Count)
	for i := 0; i < Count; i++ {
		monthsAgo := rng.IntRange(3, 12)
		covers := base + rng.IntRange(-coverJitter, coverJitter)
		if covers < minObservedCovers {
			covers = minObservedCovers
		}
		out = append(out, models.AnalogDay{
			ID:             fmt.Sprintf("pat_%03d", i+1),
			Date:           utils.AddDays(req.ServiceDate, -30*monthsAgo),
			Label:          label,
			ObservedCovers: covers,
			Similarity:     synth.Round(rng.Uniform(0.85, 0.95), 2),
			Metadata:       metadata(snapshot),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// FindAnalogs satisfies the pattern-source contract, returning at most limit analogs.
func (g *Generator) FindAnalogs(_ context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot, limit int) ([]models.AnalogDay, error) {
	analogs := g.Generate(req, snapshot)
	if limit > 0 && limit < len(analogs) {
		analogs = analogs[:limit]
	}
	return analogs, nil
}

// BaseCovers draws the day-type base and applies event, weather and holiday
// adjustments. Holiday ranges replace every other adjustment.
func BaseCovers(rng *synth.Stream, snapshot models.ContextSnapshot) int {
	r, ok := dayTypeBase[snapshot.DayType]
	if !ok {
		r = dayTypeBase[models.DayTypeWeekday]
	}
	base := rng.IntRange(r.lo, r.hi)

	base += eventBoost * len(snapshot.Events)

	switch snapshot.Weather.Condition {
	case models.WeatherRain:
		base -= rainPenalty
	case models.WeatherHeavyRain:
		base -= heavyRainPenalty
	}

	if snapshot.IsHoliday {
		if hr, ok := holidayBase[snapshot.HolidayName]; ok {
			base = rng.IntRange(hr.lo, hr.hi)
		}
	}
	return base
}

// Label describes the kind of day the analogs represent.
func Label(snapshot models.ContextSnapshot) string {
	switch {
	case len(snapshot.Events) > 0:
		return snapshot.Events[0].Type + " nearby"
	case snapshot.IsHoliday:
		return snapshot.HolidayName + " service"
	case snapshot.IsRainy():
		return "Rainy " + snapshot.DayOfWeek
	default:
		return "Regular " + string(snapshot.DayType) + " service"
	}
}

func metadata(snapshot models.ContextSnapshot) map[string]string {
	md := map[string]string{
		"day_of_week": snapshot.DayOfWeek,
		"weather":     snapshot.Weather.Condition,
		"events":      strconv.Itoa(len(snapshot.Events)),
		"holiday":     "",
	}
	if snapshot.IsHoliday {
		md["holiday"] = snapshot.HolidayName
	}
	return md
}

package repo

import (
	"math"

	"github.com/miradorstack/covers-forecast/internal/analogs"
	"github.com/miradorstack/covers-forecast/internal/engine"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/synth"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// historyRow is the shared shape of a training row across readers.
type historyRow struct {
	Date         string   `csv:"ds"`
	Covers       float64  `csv:"y"`
	WeatherScore *float64 `csv:"weather_score,omitempty"`
	EventImpact  *float64 `csv:"event_impact,omitempty"`
	Occupancy    *float64 `csv:"occupancy,omitempty"`
}

func (r historyRow) regressors() map[string]float64 {
	regs := make(map[string]float64, 3)
	for name, v := range map[string]*float64{
		engine.RegressorWeatherScore: r.WeatherScore,
		engine.RegressorEventImpact:  r.EventImpact,
		engine.RegressorOccupancy:    r.Occupancy,
	} {
		if v != nil && !math.IsNaN(*v) {
			regs[name] = *v
		}
	}
	return regs
}

// HistoricalDays summarises observations with their synthesized context so
// they can be indexed for analog search. Days without covers are skipped.
func HistoricalDays(locationID string, period models.ServicePeriod, history []models.Observation) []HistoricalDay {
	days := make([]HistoricalDay, 0, len(history))
	for _, obs := range history {
		covers, ok := observedCovers(obs.Covers)
		if !ok {
			continue
		}
		date := utils.DateOnly(obs.Date)
		snapshot := synth.Synthesize(date)
		days = append(days, HistoricalDay{
			LocationID:    locationID,
			ServicePeriod: period,
			Date:          date,
			Covers:        covers,
			Label:         analogs.Label(snapshot),
			DayOfWeek:     snapshot.DayOfWeek,
			Weather:       snapshot.Weather.Condition,
			Events:        len(snapshot.Events),
			Holiday:       snapshot.HolidayName,
		})
	}
	return days
}

// RegressorMeans averages each regressor over the observations carrying it.
func RegressorMeans(history []models.Observation) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, obs := range history {
		for name, v := range obs.Regressors {
			sums[name] += v
			counts[name]++
		}
	}
	means := make(map[string]float64, len(sums))
	for name, sum := range sums {
		means[name] = sum / float64(counts[name])
	}
	return means
}

package synth

import (
	"time"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

type eventKind struct {
	kind          string
	names         []string
	minAttendance int
	maxAttendance int
	minDistance   float64
	maxDistance   float64
	impact        models.Impact
	startTime     string
}

var eventKinds = []eventKind{
	{
		kind:          "Concert",
		names:         []string{"Coldplay", "Taylor Swift", "Ed Sheeran", "Beyonce"},
		minAttendance: 30000, maxAttendance: 60000,
		minDistance: 1.5, maxDistance: 5.0,
		impact:    models.ImpactHigh,
		startTime: "20:00",
	},
	{
		kind:          "Sports Match",
		names:         []string{"PSG vs Marseille", "France vs England", "Champions League Final"},
		minAttendance: 40000, maxAttendance: 80000,
		minDistance: 2.0, maxDistance: 6.0,
		impact:    models.ImpactHigh,
		startTime: "19:00",
	},
	{
		kind:          "Theater Show",
		names:         []string{"Hamilton", "Les Miserables", "Phantom of the Opera"},
		minAttendance: 1000, maxAttendance: 3000,
		minDistance: 0.5, maxDistance: 2.0,
		impact:    models.ImpactMedium,
		startTime: "20:00",
	},
	{
		kind:          "Conference",
		names:         []string{"Tech Summit", "Marketing Expo", "Healthcare Forum"},
		minAttendance: 500, maxAttendance: 2000,
		minDistance: 0.2, maxDistance: 1.5,
		impact:    models.ImpactMedium,
		startTime: "19:00",
	},
}

const (
	busyEventProbability   = 0.7
	quietEventProbability  = 0.3
	secondEventProbability = 0.2
	secondEventStartTime   = "21:00"
)

type weatherBand struct {
	condition string
	weight    float64
	minPrecip int
	maxPrecip int
}

var weatherBands = []weatherBand{
	{models.WeatherClear, 0.40, 0, 0},
	{models.WeatherPartlyCloudy, 0.30, 0, 10},
	{models.WeatherCloudy, 0.15, 10, 30},
	{models.WeatherRain, 0.10, 40, 70},
	{models.WeatherHeavyRain, 0.03, 70, 100},
	{models.WeatherSnow, 0.02, 30, 60},
}

// Synthesize derives the external context for date. The result depends on the
// calendar date only; equal dates always yield equal snapshots.
func Synthesize(date time.Time) models.ContextSnapshot {
	date = utils.DateOnly(date)
	dayType := DayTypeOf(date)

	snapshot := models.ContextSnapshot{
		DayOfWeek: date.Weekday().String(),
		DayType:   dayType,
		Weather:   synthesizeWeather(date),
		Events:    synthesizeEvents(date, dayType),
	}
	if name, ok := HolidayName(date); ok {
		snapshot.IsHoliday = true
		snapshot.HolidayName = name
	}
	return snapshot
}

// DayTypeOf buckets a date into weekday, friday or weekend.
func DayTypeOf(date time.Time) models.DayType {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return models.DayTypeWeekend
	case time.Friday:
		return models.DayTypeFriday
	default:
		return models.DayTypeWeekday
	}
}

func synthesizeEvents(date time.Time, dayType models.DayType) []models.Event {
	rng := NewStream(date, SaltEvents)
	events := make([]models.Event, 0, 2)

	probability := quietEventProbability
	if dayType != models.DayTypeWeekday {
		probability = busyEventProbability
	}
	if rng.Float64() >= probability {
		return events
	}

	first := rng.Intn(len(eventKinds))
	events = append(events, drawEvent(rng, eventKinds[first], eventKinds[first].startTime))

	if dayType == models.DayTypeWeekend && rng.Float64() < secondEventProbability {
		// pick among the remaining kinds
		second := rng.Intn(len(eventKinds) - 1)
		if second >= first {
			second++
		}
		events = append(events, drawEvent(rng, eventKinds[second], secondEventStartTime))
	}
	return events
}

func drawEvent(rng *Stream, kind eventKind, startTime string) models.Event {
	return models.Event{
		Type:               kind.kind,
		Name:               kind.names[rng.Intn(len(kind.names))],
		DistanceKm:         Round(rng.Uniform(kind.minDistance, kind.maxDistance), 1),
		ExpectedAttendance: rng.IntRange(kind.minAttendance, kind.maxAttendance),
		StartTime:          startTime,
		Impact:             kind.impact,
	}
}

func synthesizeWeather(date time.Time) models.Weather {
	rng := NewStream(date, SaltWeather)

	draw := rng.Float64()
	band := weatherBands[0]
	cumulative := 0.0
	for _, candidate := range weatherBands {
		cumulative += candidate.weight
		if draw <= cumulative {
			band = candidate
			break
		}
	}

	minTemp, maxTemp := temperatureRange(date.Month())
	weather := models.Weather{
		Condition:   band.condition,
		Temperature: rng.IntRange(minTemp, maxTemp),
	}
	if band.maxPrecip > 0 {
		weather.PrecipitationPct = rng.IntRange(band.minPrecip, band.maxPrecip)
	}
	weather.WindSpeed = rng.IntRange(5, 25)
	return weather
}

func temperatureRange(month time.Month) (int, int) {
	switch month {
	case time.December, time.January, time.February:
		return 0, 10
	case time.March, time.April, time.May:
		return 10, 20
	case time.June, time.July, time.August:
		return 20, 30
	default:
		return 10, 20
	}
}

package engine

import "github.com/miradorstack/covers-forecast/internal/models"

// Regressor names understood by the regression model.
const (
	RegressorWeatherScore = "weather_score"
	RegressorEventImpact  = "event_impact"
	RegressorOccupancy    = "occupancy"
)

// KnownRegressors is the canonical column order for optional regressors.
var KnownRegressors = []string{RegressorWeatherScore, RegressorEventImpact, RegressorOccupancy}

// WeatherScore maps a condition onto [0,1] where 1 is the worst weather.
func WeatherScore(condition string) float64 {
	switch condition {
	case models.WeatherRain, models.WeatherHeavyRain, models.WeatherSnow:
		return 0.9
	case models.WeatherCloudy:
		return 0.5
	default:
		return 0.1
	}
}

// EventImpact maps an event count onto [0,1].
func EventImpact(events int) float64 {
	return min(1.0, 0.3*float64(events))
}

// RegressorsFromContext derives the regressor values available from a snapshot.
// Occupancy has no context source and is left to the model's default.
func RegressorsFromContext(snapshot models.ContextSnapshot) map[string]float64 {
	return map[string]float64{
		RegressorWeatherScore: WeatherScore(snapshot.Weather.Condition),
		RegressorEventImpact:  EventImpact(len(snapshot.Events)),
	}
}

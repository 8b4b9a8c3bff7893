package models

// DayType buckets a date for demand purposes.
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeFriday  DayType = "friday"
	DayTypeWeekend DayType = "weekend"
)

// Impact grades how strongly an event affects nearby demand.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Weather conditions produced by the context synthesizer.
const (
	WeatherClear        = "Clear"
	WeatherPartlyCloudy = "Partly Cloudy"
	WeatherCloudy       = "Cloudy"
	WeatherRain         = "Rain"
	WeatherHeavyRain    = "Heavy Rain"
	WeatherSnow         = "Snow"
)

// Weather describes conditions for the service date.
type Weather struct {
	Condition        string `json:"condition"`
	Temperature      int    `json:"temperature"`
	PrecipitationPct int    `json:"precipitation_pct"`
	WindSpeed        int    `json:"wind_speed"`
}

// Event is a nearby happening that may drive demand.
type Event struct {
	Type               string  `json:"type"`
	Name               string  `json:"name"`
	DistanceKm         float64 `json:"distance_km"`
	ExpectedAttendance int     `json:"expected_attendance"`
	StartTime          string  `json:"start_time"`
	Impact             Impact  `json:"impact"`
}

// ContextSnapshot is the external context derived for a single date.
type ContextSnapshot struct {
	DayOfWeek   string  `json:"day_of_week"`
	DayType     DayType `json:"day_type"`
	IsHoliday   bool    `json:"is_holiday"`
	HolidayName string  `json:"holiday_name,omitempty"`
	Weather     Weather `json:"weather"`
	Events      []Event `json:"events"`
}

// IsRainy reports whether the weather condition is Rain or Heavy Rain.
func (c ContextSnapshot) IsRainy() bool {
	return c.Weather.Condition == WeatherRain || c.Weather.Condition == WeatherHeavyRain
}

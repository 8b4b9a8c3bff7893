package analogs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/synth"
)

func request(date time.Time) models.ForecastRequest {
	return models.ForecastRequest{LocationID: "paris-01", ServiceDate: date, ServicePeriod: models.PeriodDinner}
}

func TestGenerateDeterministicAndSorted(t *testing.T) {
	gen := NewGenerator()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		date := start.AddDate(0, 0, i)
		snapshot := synth.Synthesize(date)
		first := gen.Generate(request(date), snapshot)
		second := gen.Generate(request(date), snapshot)
		require.Equal(t, first, second)
		require.Len(t, first, Count)

		for j, analog := range first {
			assert.GreaterOrEqual(t, analog.ObservedCovers, 30)
			assert.GreaterOrEqual(t, analog.Similarity, 0.85)
			assert.LessOrEqual(t, analog.Similarity, 0.95)
			assert.True(t, analog.Date.Before(date))
			ageDays := int(date.Sub(analog.Date).Hours() / 24)
			assert.Zero(t, ageDays%30)
			assert.GreaterOrEqual(t, ageDays, 90)
			assert.LessOrEqual(t, ageDays, 360)
			if j > 0 {
				assert.GreaterOrEqual(t, first[j-1].Similarity, analog.Similarity)
			}
		}
	}
}

func TestHolidayOverrideIgnoresEventsAndWeather(t *testing.T) {
	gen := NewGenerator()
	for year := 2015; year <= 2035; year++ {
		date := time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC)
		snapshot := synth.Synthesize(date)
		snapshot.Events = append(snapshot.Events,
			models.Event{Type: "Concert"}, models.Event{Type: "Sports Match"})
		snapshot.Weather.Condition = models.WeatherHeavyRain

		rng := synth.NewStream(date, synth.SaltAnalogs)
		base := BaseCovers(rng, snapshot)
		assert.GreaterOrEqual(t, base, 40, "year %d", year)
		assert.LessOrEqual(t, base, 70, "year %d", year)

		for _, analog := range gen.Generate(request(date), snapshot) {
			assert.GreaterOrEqual(t, analog.ObservedCovers, 30)
			assert.LessOrEqual(t, analog.ObservedCovers, 80)
		}
	}
}

func TestBaseCoversAdjustments(t *testing.T) {
	date := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	plain := models.ContextSnapshot{DayType: models.DayTypeWeekday, Weather: models.Weather{Condition: models.WeatherClear}}
	withEvents := plain
	withEvents.Events = []models.Event{{Type: "Concert"}, {Type: "Conference"}}
	rainy := plain
	rainy.Weather.Condition = models.WeatherRain
	stormy := plain
	stormy.Weather.Condition = models.WeatherHeavyRain

	base := BaseCovers(synth.NewStream(date, synth.SaltAnalogs), plain)
	assert.GreaterOrEqual(t, base, 100)
	assert.LessOrEqual(t, base, 130)
	assert.Equal(t, base+30, BaseCovers(synth.NewStream(date, synth.SaltAnalogs), withEvents))
	assert.Equal(t, base-10, BaseCovers(synth.NewStream(date, synth.SaltAnalogs), rainy))
	assert.Equal(t, base-20, BaseCovers(synth.NewStream(date, synth.SaltAnalogs), stormy))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Concert nearby", Label(models.ContextSnapshot{Events: []models.Event{{Type: "Concert"}}, IsHoliday: true, HolidayName: "Christmas"}))
	assert.Equal(t, "Christmas service", Label(models.ContextSnapshot{IsHoliday: true, HolidayName: "Christmas"}))
	assert.Equal(t, "Rainy Tuesday", Label(models.ContextSnapshot{DayOfWeek: "Tuesday", Weather: models.Weather{Condition: models.WeatherRain}}))
	assert.Equal(t, "Regular friday service", Label(models.ContextSnapshot{DayType: models.DayTypeFriday, Weather: models.Weather{Condition: models.WeatherCloudy}}))
}

func TestFindAnalogsHonoursLimit(t *testing.T) {
	date := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	got, err := NewGenerator().FindAnalogs(context.Background(), request(date), synth.Synthesize(date), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

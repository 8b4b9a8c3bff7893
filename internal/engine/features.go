package engine

import (
	"math"
	"time"

	"github.com/miradorstack/covers-forecast/internal/utils"
)

const (
	yearlyPeriodDays = 365.25
	weeklyPeriodDays = 7.0
)

// featureSpec fixes the design-matrix layout of a trained model:
// intercept, trend, yearly Fourier pairs, weekly Fourier pairs, holiday
// indicators, then regressors.
type featureSpec struct {
	origin      time.Time
	spanDays    float64
	yearlyOrder int
	weeklyOrder int
	holidays    []string
	regressors  []string
}

func (f featureSpec) width() int {
	return 2 + 2*f.yearlyOrder + 2*f.weeklyOrder + len(f.holidays) + len(f.regressors)
}

// row writes the features of date into dst and returns the regressors that
// were not supplied (they are set to 0).
func (f featureSpec) row(date time.Time, regressors map[string]float64, dst []float64) []string {
	date = utils.DateOnly(date)
	epochDays := float64(date.Unix()) / 86400

	i := 0
	dst[i] = 1
	i++
	dst[i] = date.Sub(f.origin).Hours() / 24 / f.spanDays
	i++

	i = fourier(epochDays, yearlyPeriodDays, f.yearlyOrder, dst, i)
	i = fourier(epochDays, weeklyPeriodDays, f.weeklyOrder, dst, i)

	holiday, isHoliday := frenchHolidayName(date)
	for _, name := range f.holidays {
		dst[i] = 0
		if isHoliday && holiday == name {
			dst[i] = 1
		}
		i++
	}

	var missing []string
	for _, name := range f.regressors {
		v, ok := regressors[name]
		if !ok {
			missing = append(missing, name)
			v = 0
		}
		dst[i] = v
		i++
	}
	return missing
}

func fourier(t, period float64, order int, dst []float64, i int) int {
	for k := 1; k <= order; k++ {
		angle := 2 * math.Pi * float64(k) * t / period
		dst[i] = math.Sin(angle)
		dst[i+1] = math.Cos(angle)
		i += 2
	}
	return i
}

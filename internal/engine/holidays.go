package engine

import (
	"time"

	"github.com/miradorstack/covers-forecast/internal/utils"
)

// frenchHolidays returns public holidays in France for a year, keyed by UTC date.
func frenchHolidays(year int) map[time.Time]string {
	d := func(m time.Month, day int) time.Time { return time.Date(year, m, day, 0, 0, 0, 0, time.UTC) }
	easter := easterSunday(year)

	return map[time.Time]string{
		d(time.January, 1):       "new_years_day",
		easter.AddDate(0, 0, 1):  "easter_monday",
		d(time.May, 1):           "labour_day",
		d(time.May, 8):           "victory_day",
		easter.AddDate(0, 0, 39): "ascension_day",
		easter.AddDate(0, 0, 50): "whit_monday",
		d(time.July, 14):         "bastille_day",
		d(time.August, 15):       "assumption_day",
		d(time.November, 1):      "all_saints_day",
		d(time.November, 11):     "armistice_day",
		d(time.December, 25):     "christmas_day",
	}
}

// frenchHolidayName reports the holiday falling on date, if any.
func frenchHolidayName(date time.Time) (string, bool) {
	date = utils.DateOnly(date)
	name, ok := frenchHolidays(date.Year())[date]
	return name, ok
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

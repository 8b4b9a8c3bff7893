package synth

import "time"

type monthDay struct {
	month time.Month
	day   int
}

// Holiday names used in the context snapshot.
const (
	HolidayChristmasEve = "Christmas Eve"
	HolidayChristmas    = "Christmas"
	HolidayNewYearsEve  = "New Year's Eve"
	HolidayNewYearsDay  = "New Year's Day"
	HolidayBastilleDay  = "Bastille Day"
	HolidayVeteransDay  = "Veterans Day"
	HolidayLaborDay     = "Labor Day"
)

var holidayCalendar = map[monthDay]string{
	{time.December, 24}: HolidayChristmasEve,
	{time.December, 25}: HolidayChristmas,
	{time.December, 31}: HolidayNewYearsEve,
	{time.January, 1}:   HolidayNewYearsDay,
	{time.July, 14}:     HolidayBastilleDay,
	{time.November, 11}: HolidayVeteransDay,
	{time.May, 1}:       HolidayLaborDay,
}

// HolidayName returns the display name when date falls on a calendar holiday.
func HolidayName(date time.Time) (string, bool) {
	name, ok := holidayCalendar[monthDay{date.Month(), date.Day()}]
	return name, ok
}

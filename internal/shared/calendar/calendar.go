// Package calendar provides date-only arithmetic on civil.Date values.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Clamped returns year-month-day, moving day back to the last day of the
// month when the month is shorter.
func Clamped(year int, month time.Month, day int) civil.Date {
	for month > time.December {
		month -= 12
		year++
	}
	for month < time.January {
		month += 12
		year--
	}
	if day < 1 {
		day = 1
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// AddMonths shifts d by n months and clamps the day to the target month.
func AddMonths(d civil.Date, n int) civil.Date {
	return Clamped(d.Year, d.Month+time.Month(n), d.Day)
}

// Today returns the current date in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}

// Parse parses an ISO date, returning the zero date and an error when the
// value is malformed.
func Parse(s string) (civil.Date, error) {
	return civil.ParseDate(s)
}

// Max returns the later of a and b.
func Max(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

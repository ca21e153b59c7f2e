package domain

import "time"

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// HoursInYear returns 8784 for leap years and 8760 otherwise.
func HoursInYear(year int) int {
	return DaysInYear(year) * 24
}

// hourOfYear returns the zero-based hour offset of t within its calendar year,
// using the wall-clock fields of t's own location.
func hourOfYear(t time.Time) int {
	return (t.YearDay()-1)*24 + t.Hour()
}

// hourAt is the inverse of hourOfYear for UTC timestamps.
func hourAt(year, offset int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Hour)
}

// truncateToHour drops minutes, seconds and nanoseconds while keeping the
// wall clock of t's location. time.Truncate works on absolute time and would
// misalign zones with non-hour offsets.
func truncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

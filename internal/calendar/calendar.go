// Package calendar holds the day-of-year and pentad arithmetic shared by the
// climatology grids and the buddy check.
//
// Climatologies have no leap day. Day-of-year and pentad indices are computed
// on a 365-day year in which 29 February shares its slot with 1 March.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// PentadsPerYear is the number of five-day periods in a climatological year.
const PentadsPerYear = 73

// ErrInvalidDate is returned for a month or day outside the calendar.
var ErrInvalidDate = errors.New("invalid month/day")

var (
	commonYear = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	leapYear   = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
)

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MonthLengths returns the number of days in each month of year.
func MonthLengths(year int) [12]int {
	if IsLeap(year) {
		return leapYear
	}
	return commonYear
}

// ValidMonthDay reports whether month/day exists in some year (29 Feb included).
func ValidMonthDay(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= leapYear[month-1]
}

// ValidDate reports whether year/month/day exists.
func ValidDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= MonthLengths(year)[month-1]
}

// DayInYear returns the climatological day number 1..365 for month/day.
// 29 February maps to 60, the same day as 1 March.
func DayInYear(month, day int) (int, error) {
	if !ValidMonthDay(month, day) {
		return 0, fmt.Errorf("%w: %02d-%02d", ErrInvalidDate, month, day)
	}
	n := day
	for m := 0; m < month-1; m++ {
		n += commonYear[m]
	}
	if month == 2 && day == 29 {
		n = 60
	}
	return n, nil
}

// DayOfYear returns the actual day number 1..366 of a date in year.
func DayOfYear(year, month, day int) (int, error) {
	if !ValidDate(year, month, day) {
		return 0, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	lengths := MonthLengths(year)
	n := day
	for m := 0; m < month-1; m++ {
		n += lengths[m]
	}
	return n, nil
}

// WhichPentad returns the pentad 1..73 containing month/day.
func WhichPentad(month, day int) (int, error) {
	d, err := DayInYear(month, day)
	if err != nil {
		return 0, err
	}
	return (d-1)/5 + 1, nil
}

// PentadToMonthDay returns the first month/day of pentad p (1..73).
func PentadToMonthDay(p int) (month, day int, err error) {
	if p < 1 || p > PentadsPerYear {
		return 0, 0, fmt.Errorf("pentad %d out of range 1-%d", p, PentadsPerYear)
	}
	d := (p-1)*5 + 1
	for m := 0; m < 12; m++ {
		if d <= commonYear[m] {
			return m + 1, d, nil
		}
		d -= commonYear[m]
	}
	return 0, 0, fmt.Errorf("pentad %d out of range", p)
}

// JulianDay counts days from 1 January 4713 BC for a Gregorian date.
func JulianDay(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// TimeDifference returns the hours from a to b; negative when b precedes a.
func TimeDifference(a, b time.Time) float64 {
	ja := float64(JulianDay(a.Year(), int(a.Month()), a.Day())) + DecimalHour(a)/24
	jb := float64(JulianDay(b.Year(), int(b.Month()), b.Day())) + DecimalHour(b)/24
	return 24 * (jb - ja)
}

// DecimalHour returns the hour of t with minutes and seconds as a fraction.
func DecimalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600 +
		float64(t.Nanosecond())/3.6e12
}

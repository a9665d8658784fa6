package qc

import (
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/marine-qc/internal/astro"
	"github.com/couchcryptid/marine-qc/internal/calendar"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Default plausible report years.
const (
	DefaultMinYear = 1850
	DefaultMaxYear = 2024
)

// PositionCheck fails a latitude outside [-90, 90] or a longitude outside
// [-180, 360].
func PositionCheck(lat, lon float64) domain.Outcome {
	if missing(lat, lon) {
		return failed
	}
	return outcome(lat < -90 || lat > 90 || lon < -180 || lon > 360)
}

// DateCheck fails a date that does not exist or lies outside
// [minYear, maxYear].
func DateCheck(year, month, day, minYear, maxYear int) domain.Outcome {
	if maxYear < minYear {
		return untestable
	}
	if year < minYear || year > maxYear {
		return failed
	}
	return outcome(!calendar.ValidDate(year, month, day))
}

// TimeCheck fails an hour outside [0, 24).
func TimeCheck(hour float64) domain.Outcome {
	if math.IsNaN(hour) {
		return failed
	}
	return outcome(hour < 0 || hour >= 24)
}

// DayCheck fails a report taken while the sun was up hoursBack hours before
// it, so night-only checks keep to night reports.
func DayCheck(ts time.Time, lat, lon, hoursBack float64) domain.Outcome {
	if math.IsNaN(hoursBack) {
		return untestable
	}
	if ts.IsZero() || missing(lat, lon) {
		return failed
	}
	day, err := astro.DayTest(ts.Year(), int(ts.Month()), ts.Day(), calendar.DecimalHour(ts), lat, lon, hoursBack)
	if err != nil {
		return failed
	}
	return outcome(day)
}

var genericIDs = map[string]bool{
	"": true, "1": true, "58": true, "RIGG": true, "SHIP": true, "ship": true, "PLAT": true,
	"0120": true, "0204": true, "0205": true, "0206": true, "0207": true, "0208": true, "0209": true,
	"MASKST": true, "MASKSTID": true, "MASK": true, "XXXX": true, "/////": true,
}

// IDIsGeneric reports whether a platform id is a placeholder call sign
// shared by many platforms. Some numeric call signs were generic only in
// certain years.
func IDIsGeneric(id string, year int) bool {
	id = strings.TrimSpace(id)
	if genericIDs[id] || domain.IsMissing(id) {
		return true
	}
	switch {
	case 1921 <= year && year <= 1941 && (id == "2" || id == "00002"):
		return true
	case 1930 <= year && year <= 1937 && id == "3":
		return true
	case 1934 <= year && year <= 1954 && (id == "7" || id == "00007"):
		return true
	}
	return false
}

// Package astro classifies reports as day or night from a low-order solar
// ephemeris: mean anomaly, ecliptic longitude, right ascension and
// declination, local sidereal time, hour angle, then elevation and azimuth.
// Results are good to a fraction of a degree, which is all the day/night
// tests need.
package astro

import (
	"fmt"
	"math"

	"github.com/couchcryptid/marine-qc/internal/calendar"
)

const (
	degToRad = math.Pi / 180

	// DefaultElevationLimit is the night/day boundary used by track checks.
	DefaultElevationLimit = -2.5
	// DefaultHoursSinceSunrise is how far back DayTest looks for the sun.
	DefaultHoursSinceSunrise = 1.0

	referenceYear = 1980
)

// SunPosition is the sun as seen from one place at one instant. All angles
// are in degrees.
type SunPosition struct {
	Azimuth        float64 // east of north
	Elevation      float64
	RightAscension float64
	HourAngle      float64
	Sidereal       float64 // local sidereal time as an hour angle
	Declination    float64
}

// SunAngle returns the position of the sun at decimal UTC time hour:minute:sec
// on day-of-year day (1..366) of year.
func SunAngle(year, day int, hour, minute, sec, lat, lon float64) (SunPosition, error) {
	switch {
	case day < 1 || day > 366:
		return SunPosition{}, fmt.Errorf("day of year %d out of range 1-366", day)
	case hour < 0 || hour >= 24:
		return SunPosition{}, fmt.Errorf("hour %v out of range [0, 24)", hour)
	case minute < 0 || minute >= 60:
		return SunPosition{}, fmt.Errorf("minute %v out of range [0, 60)", minute)
	case sec < 0 || sec >= 60:
		return SunPosition{}, fmt.Errorf("second %v out of range [0, 60)", sec)
	case lat < -90 || lat > 90:
		return SunPosition{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}

	delyear := float64(year - referenceYear)
	hours := hour + (minute+sec/60)/60
	t := daysSinceReference(hours, day, delyear)

	ra, dec := sunEquatorial(t)
	lst := localSidereal(t, hours, delyear, lon)
	ha := lst - ra
	if ha < 0 {
		ha += 2 * math.Pi
	}
	az, elev := azimuthElevation(lat, dec, ha)

	return SunPosition{
		Azimuth:        az,
		Elevation:      elev / degToRad,
		RightAscension: ra / degToRad,
		HourAngle:      positiveDegrees(ha / degToRad),
		Sidereal:       positiveDegrees(lst / degToRad),
		Declination:    dec / degToRad,
	}, nil
}

// IsDay reports whether a solar elevation is above threshold.
func IsDay(elevation, threshold float64) bool {
	return elevation > threshold
}

// DayTest reports whether the sun was above the horizon hoursBack hours
// before the given time. It decides whether an air temperature was measured
// by day, when solar heating of the ship biases it.
func DayTest(year, month, day int, hour, lat, lon, hoursBack float64) (bool, error) {
	if err := validateInputs(month, day, hour, lat); err != nil {
		return false, err
	}
	doy, err := calendar.DayOfYear(year, month, day)
	if err != nil {
		return false, err
	}
	whole := math.Floor(hour)
	minute := (hour - whole) * 60

	h := whole - hoursBack
	y := year
	if h < 0 {
		h += 24
		doy--
		if doy <= 0 {
			y--
			if doy, err = calendar.DayOfYear(y, 12, 31); err != nil {
				return false, err
			}
		}
	}
	pos, err := SunAngle(y, doy, h, minute, 0, nudge(lat), nudge(lon))
	if err != nil {
		return false, err
	}
	return IsDay(pos.Elevation, 0), nil
}

// TrackDayTest reports whether the sun is above elevLimit degrees at the
// given time. Track checks use it to keep diurnally heated SSTs out of
// background comparisons.
func TrackDayTest(year, month, day int, hour, lat, lon, elevLimit float64) (bool, error) {
	if err := validateInputs(month, day, hour, lat); err != nil {
		return false, err
	}
	doy, err := calendar.DayOfYear(year, month, day)
	if err != nil {
		return false, err
	}
	whole := math.Floor(hour)
	pos, err := SunAngle(year, doy, whole, (hour-whole)*60, 0, nudge(lat), nudge(lon))
	if err != nil {
		return false, err
	}
	return IsDay(pos.Elevation, elevLimit), nil
}

func validateInputs(month, day int, hour, lat float64) error {
	switch {
	case month < 1 || month > 12:
		return fmt.Errorf("month %d not in range 1-12", month)
	case day < 1 || day > 31:
		return fmt.Errorf("day %d not in range 1-31", day)
	case math.IsNaN(hour) || hour < 0 || hour > 24:
		return fmt.Errorf("hour %v not in range 0-24", hour)
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return fmt.Errorf("latitude %v not in range -90 to 90", lat)
	}
	return nil
}

// nudge moves exact zeros off the equator and meridian, where the azimuth
// formula divides by sin(lat).
func nudge(v float64) float64 {
	if v == 0 {
		return 0.0001
	}
	return v
}

// daysSinceReference is the time in days since the end of 1979, corrected
// for the leap days in between.
func daysSinceReference(hours float64, day int, delyear float64) float64 {
	leap := math.Floor(delyear / 4)
	t := delyear*365 + leap + float64(day) - 1 + hours/24
	if delyear == leap*4 {
		t--
	}
	if delyear < 0 && delyear != leap*4 {
		t--
	}
	return t
}

func sunEquatorial(t float64) (ra, dec float64) {
	theta := (360 * t / 365.25) * degToRad
	g := -0.031271 - 4.5396e-7*t + theta
	long := 4.900968 + 3.6747e-7*t + (0.033434-2.3e-9*t)*math.Sin(g) + 0.000349*math.Sin(2*g) + theta
	obliquity := 0.409140 - 6.2149e-9*t
	sinLong := math.Sin(long)

	ra = math.Atan2(sinLong*math.Cos(obliquity), math.Cos(long))
	if ra < 0 {
		ra += 2 * math.Pi
	}
	dec = math.Asin(sinLong * math.Sin(obliquity))
	return ra, dec
}

func localSidereal(t, hours, delyear, lon float64) float64 {
	sid := 1.759335 + 2*math.Pi*(t/365.25-delyear) + 3.694e-7*t
	if sid >= 2*math.Pi {
		sid -= 2 * math.Pi
	}
	lst := sid + (hours*15+lon)*degToRad
	if lst >= 2*math.Pi {
		lst -= 2 * math.Pi
	}
	return lst
}

// azimuthElevation returns azimuth in degrees and elevation in radians.
func azimuthElevation(lat, dec, ha float64) (float64, float64) {
	phi := lat * degToRad
	sinElev := math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(ha)
	sinElev = math.Max(-1, math.Min(1, sinElev))
	elev := math.Asin(sinElev)

	az := 180.0
	if phi-dec > 0 {
		az = 0
	}
	// Near the zenith the asin below is unstable; keep 0 or 180.
	if math.Abs(elev-math.Pi/2) <= 1e-6 {
		return az, elev
	}
	v := math.Cos(dec) * math.Sin(ha) / math.Cos(elev)
	v = math.Max(-1, math.Min(1, v))
	az = math.Asin(v) / degToRad
	if math.Sin(elev) < math.Sin(dec)/math.Sin(phi) {
		az = positiveDegrees(az) - 180
	}
	return 180 + az, elev
}

func positiveDegrees(deg float64) float64 {
	if deg < 0 {
		return deg + 360
	}
	return deg
}

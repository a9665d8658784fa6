package track

import (
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/stats"
)

// AgroundParams tunes the aground checks. Window periods are in days.
// MaxWinPeriod is ignored by NewAgroundCheck.
type AgroundParams struct {
	// SmoothWin is the odd number of reports in the running median.
	SmoothWin    int     `yaml:"smooth_win"`
	MinWinPeriod float64 `yaml:"min_win_period"`
	MaxWinPeriod float64 `yaml:"max_win_period"`
}

// DefaultAgroundParams allow for gaps of up to two days in reporting.
func DefaultAgroundParams() AgroundParams {
	return AgroundParams{SmoothWin: 41, MinWinPeriod: 8, MaxWinPeriod: 10}
}

// Validate checks the window settings.
func (p AgroundParams) Validate(windowed bool) error {
	switch {
	case p.SmoothWin < 1:
		return paramError("smooth_win %d < 1", p.SmoothWin)
	case p.SmoothWin%2 == 0:
		return paramError("smooth_win %d not odd", p.SmoothWin)
	case p.MinWinPeriod < 1:
		return paramError("min_win_period %v < 1", p.MinWinPeriod)
	case windowed && p.MaxWinPeriod < p.MinWinPeriod:
		return paramError("max_win_period %v < min_win_period %v", p.MaxWinPeriod, p.MinWinPeriod)
	}
	return nil
}

// AgroundTolerance is the displacement in km below which a smoothed track
// counts as stationary: the jitter of 0.01 degree positions at the equator.
var AgroundTolerance = SphereDistance(0, 0, 0.01, 0.01)

// AgroundCheck flags a drifter that has run aground. Positions are median
// smoothed, then from each smoothed point the displacement over the longest
// window within [MinWinPeriod, MaxWinPeriod] is compared with
// AgroundTolerance. The drifter is aground from the first stationary window
// until it moves again; if it is still aground at the end of the record every
// report from that point on fails. Tracks no longer than SmoothWin pass.
func AgroundCheck(points []Point, p AgroundParams) ([]domain.Outcome, error) {
	return aground(points, p, true)
}

// NewAgroundCheck is AgroundCheck comparing every smoothed point with the
// last one instead of with the end of a window.
func NewAgroundCheck(points []Point, p AgroundParams) ([]domain.Outcome, error) {
	return aground(points, p, false)
}

func aground(points []Point, p AgroundParams, windowed bool) ([]domain.Outcome, error) {
	if err := p.Validate(windowed); err != nil {
		return nil, err
	}
	n := len(points)
	if n <= p.SmoothWin {
		return fill(n, domain.Passed), nil
	}
	if Validate(points) != nil {
		return fill(n, domain.Untestable), nil
	}

	half := (p.SmoothWin - 1) / 2
	lat, lon, hrs := smooth(points, p.SmoothWin)
	last := len(hrs) - 1
	minH, maxH := p.MinWinPeriod*24, p.MaxWinPeriod*24

	isAground, first := false, -1
	for i := 0; i <= last && hrs[last]-hrs[i] >= minH; i++ {
		j := last
		if windowed {
			j = lastWithin(hrs, i, maxH)
			if hrs[j]-hrs[i] < minH {
				continue
			}
		}
		if SphereDistance(lat[i], lon[i], lat[j], lon[j]) <= AgroundTolerance {
			if !isAground {
				isAground, first = true, i
			}
		} else {
			isAground, first = false, -1
		}
	}

	flags := make([]bool, n)
	if isAground {
		// Map the smoothed index back onto the raw track. A drifter aground
		// from the very start is flagged throughout.
		if first > 0 {
			first += half
		}
		for k := first; k < n; k++ {
			flags[k] = true
		}
	}
	return outcomes(flags), nil
}

// smooth returns running medians of latitude and longitude over win reports
// and the time of each window's centre report.
func smooth(points []Point, win int) (lat, lon, hrs []float64) {
	raw := hours(points)
	n := len(points) - win + 1
	half := (win - 1) / 2
	lat, lon, hrs = make([]float64, n), make([]float64, n), make([]float64, n)
	wlat, wlon := make([]float64, win), make([]float64, win)
	for i := range n {
		for k := range win {
			wlat[k], wlon[k] = points[i+k].Lat, points[i+k].Lon
		}
		lat[i], lon[i] = stats.Median(wlat), stats.Median(wlon)
		hrs[i] = raw[i+half]
	}
	return lat, lon, hrs
}

package track

import "github.com/couchcryptid/marine-qc/internal/domain"

// SpeedParams tunes the speed check. Window periods are in days.
type SpeedParams struct {
	// SpeedLimit in m/s.
	SpeedLimit   float64 `yaml:"speed_limit"`
	MinWinPeriod float64 `yaml:"min_win_period"`
	MaxWinPeriod float64 `yaml:"max_win_period"`
}

// DefaultSpeedParams suit drifting buoys reporting several times a day.
func DefaultSpeedParams() SpeedParams {
	return SpeedParams{SpeedLimit: 2.5, MinWinPeriod: 0.8, MaxWinPeriod: 1.0}
}

// Validate checks the limits are usable.
func (p SpeedParams) Validate() error {
	switch {
	case p.SpeedLimit < 0:
		return paramError("speed_limit %v < 0", p.SpeedLimit)
	case p.MinWinPeriod < 0:
		return paramError("min_win_period %v < 0", p.MinWinPeriod)
	case p.MaxWinPeriod < p.MinWinPeriod:
		return paramError("max_win_period %v < min_win_period %v", p.MaxWinPeriod, p.MinWinPeriod)
	}
	return nil
}

// SpeedCheck flags platforms moving faster than a drifter could, for example
// a buoy picked up by a ship. From each report it takes the longest window
// ending within MaxWinPeriod; if that window spans at least MinWinPeriod and
// the straight-line speed between its ends exceeds SpeedLimit, every report
// in the window fails. A single report passes.
func SpeedCheck(points []Point, p SpeedParams) ([]domain.Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(points)
	if n <= 1 {
		return fill(n, domain.Passed), nil
	}
	if Validate(points) != nil {
		return fill(n, domain.Untestable), nil
	}

	hrs := hours(points)
	minH, maxH := p.MinWinPeriod*24, p.MaxWinPeriod*24
	flags := make([]bool, n)
	for i := 0; i < n && hrs[n-1]-hrs[i] >= minH; i++ {
		j := lastWithin(hrs, i, maxH)
		span := hrs[j] - hrs[i]
		if span < minH || span <= 0 {
			continue
		}
		km := SphereDistance(points[i].Lat, points[i].Lon, points[j].Lat, points[j].Lon)
		speed := km / span * 1000 / 3600
		if speed > p.SpeedLimit {
			for k := i; k <= j; k++ {
				flags[k] = true
			}
		}
	}
	return outcomes(flags), nil
}

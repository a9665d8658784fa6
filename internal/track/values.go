package track

import (
	"math"
	"time"

	"github.com/couchcryptid/marine-qc/internal/calendar"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

// FewCheck fails every report of a track with fewer than three reports.
func FewCheck(n int) []domain.Outcome {
	if n > 0 && n < 3 {
		return fill(n, domain.Failed)
	}
	return fill(n, domain.Passed)
}

// ValueCountParams configures the repeated and rounded value checks. Neither
// check runs on a track with MinCount or fewer valid values.
type ValueCountParams struct {
	MinCount  int     `yaml:"min_count"`
	Threshold float64 `yaml:"threshold"`
}

// DefaultRepeatedParams and DefaultRoundedParams are the usual settings.
var (
	DefaultRepeatedParams = ValueCountParams{MinCount: 20, Threshold: 0.7}
	DefaultRoundedParams  = ValueCountParams{MinCount: 20, Threshold: 0.5}
)

// Validate checks the threshold is a fraction.
func (p ValueCountParams) Validate() error {
	if math.IsNaN(p.Threshold) || p.Threshold < 0 || p.Threshold > 1 {
		return paramError("threshold %v not in [0, 1]", p.Threshold)
	}
	return nil
}

func countValues(values []float64) (map[float64][]int, int) {
	groups := make(map[float64][]int)
	n := 0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n++
		groups[v] = append(groups[v], i)
	}
	return groups, n
}

// RepeatedValuesCheck fails every report carrying a value shared by more than
// Threshold of the track's valid values, a sign of a stuck sensor.
func RepeatedValuesCheck(values []float64, p ValueCountParams) ([]domain.Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	flags := make([]bool, len(values))
	groups, n := countValues(values)
	if n <= p.MinCount {
		return outcomes(flags), nil
	}
	for _, idx := range groups {
		if float64(len(idx))/float64(n) > p.Threshold {
			for _, i := range idx {
				flags[i] = true
			}
		}
	}
	return outcomes(flags), nil
}

// RoundedValuesCheck fails every whole-number value when at least Threshold
// of the track's valid values are whole numbers.
func RoundedValuesCheck(values []float64, p ValueCountParams) ([]domain.Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	flags := make([]bool, len(values))
	groups, n := countValues(values)
	if n <= p.MinCount {
		return outcomes(flags), nil
	}
	whole := 0
	for v, idx := range groups {
		if v == math.Trunc(v) {
			whole += len(idx)
		}
	}
	if float64(whole)/float64(n) < p.Threshold {
		return outcomes(flags), nil
	}
	for v, idx := range groups {
		if v == math.Trunc(v) {
			for _, i := range idx {
				flags[i] = true
			}
		}
	}
	return outcomes(flags), nil
}

// SaturationParams configures SaturatedRunsCheck.
type SaturationParams struct {
	// MinTimeThreshold is the shortest run duration in hours.
	MinTimeThreshold float64 `yaml:"min_time_threshold"`
	ShortestRun      int     `yaml:"shortest_run"`
}

// DefaultSaturationParams flag runs of more than four saturated reports over
// at least two days.
var DefaultSaturationParams = SaturationParams{MinTimeThreshold: 48, ShortestRun: 4}

// SaturatedRunsCheck fails runs of reports with the dew point equal to the air
// temperature that are longer than ShortestRun reports and span at least
// MinTimeThreshold hours.
func SaturatedRunsCheck(at, dpt []float64, times []time.Time, p SaturationParams) ([]domain.Outcome, error) {
	if len(at) != len(dpt) || len(at) != len(times) {
		return nil, paramError("%d air temperatures, %d dew points and %d times", len(at), len(dpt), len(times))
	}
	if p.ShortestRun < 0 || p.MinTimeThreshold < 0 {
		return nil, paramError("negative run length or duration")
	}
	flags := make([]bool, len(at))
	var run []int
	closeRun := func() {
		if len(run) > p.ShortestRun {
			first, last := times[run[0]], times[run[len(run)-1]]
			if calendar.TimeDifference(first, last) >= p.MinTimeThreshold {
				for _, i := range run {
					flags[i] = true
				}
			}
		}
		run = run[:0]
	}
	for i := range at {
		if at[i] == dpt[i] {
			run = append(run, i)
			continue
		}
		closeRun()
	}
	closeRun()
	return outcomes(flags), nil
}

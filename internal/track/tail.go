package track

import (
	"math"

	"github.com/couchcryptid/marine-qc/internal/astro"
	"github.com/couchcryptid/marine-qc/internal/calendar"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/stats"
)

// SSTReport is a drifter SST matched to a background analysis.
type SSTReport struct {
	Point
	SST        float64
	Background float64
	// Ice is the sea-ice fraction; NaN means none.
	Ice                float64
	BackgroundVariance float64
}

// TailParams tunes the SST tail check.
type TailParams struct {
	LongWinLen   int     `yaml:"long_win_len"`
	LongErrStdN  float64 `yaml:"long_err_std_n"`
	ShortWinLen  int     `yaml:"short_win_len"`
	ShortErrStdN float64 `yaml:"short_err_std_n"`
	ShortWinNBad int     `yaml:"short_win_n_bad"`
	// DrifInter is the spread of drifter biases and DrifIntra the random
	// measurement error, both in degC.
	DrifInter float64 `yaml:"drif_inter"`
	DrifIntra float64 `yaml:"drif_intra"`
	// BackgroundErrLim is the background error variance above which the
	// background is unreliable.
	BackgroundErrLim float64 `yaml:"background_err_lim"`
}

// DefaultTailParams returns the usual tuning.
func DefaultTailParams() TailParams {
	return TailParams{
		LongWinLen:       121,
		LongErrStdN:      3,
		ShortWinLen:      30,
		ShortErrStdN:     3,
		ShortWinNBad:     2,
		DrifInter:        0.29,
		DrifIntra:        1,
		BackgroundErrLim: 0.3,
	}
}

// Validate checks the windows and error budgets.
func (p TailParams) Validate() error {
	switch {
	case p.LongWinLen < 1 || p.LongWinLen%2 == 0:
		return paramError("long_win_len %d must be odd and >= 1", p.LongWinLen)
	case p.ShortWinLen < 1:
		return paramError("short_win_len %d < 1", p.ShortWinLen)
	case p.ShortWinNBad < 1:
		return paramError("short_win_n_bad %d < 1", p.ShortWinNBad)
	case p.LongErrStdN < 0 || p.ShortErrStdN < 0 || p.DrifInter < 0 || p.DrifIntra < 0 || p.BackgroundErrLim < 0:
		return paramError("error budgets must be >= 0")
	}
	return nil
}

// DayElevationLimit is the solar elevation above which a drifter SST counts
// as daytime.
const DayElevationLimit = -2.5

// Ice fractions above maxIce make a background match unusable.
const maxIce = 0.15

// usableBackgrounds returns the anomaly and background error of every report
// fit for comparison with its background, with the report indices.
func usableBackgrounds(reps []SSTReport, lim float64) (anom, bgerr []float64, index []int) {
	for i, r := range reps {
		ice := r.Ice
		if math.IsNaN(ice) {
			ice = 0
		}
		day, err := astro.TrackDayTest(r.Time.Year(), int(r.Time.Month()), r.Time.Day(),
			calendar.DecimalHour(r.Time), r.Lat, r.Lon, DayElevationLimit)
		switch {
		case err != nil, day:
			continue
		case math.IsNaN(r.Background), ice < 0, ice > 1, ice > maxIce:
			continue
		case !math.IsNaN(r.BackgroundVariance) && r.BackgroundVariance > lim:
			continue
		case math.IsNaN(r.SST), r.Background < -5, r.Background > 45:
			continue
		case math.IsNaN(r.BackgroundVariance), r.BackgroundVariance < 0, r.BackgroundVariance > 10:
			continue
		}
		anom = append(anom, r.SST-r.Background)
		bgerr = append(bgerr, math.Sqrt(r.BackgroundVariance))
		index = append(index, i)
	}
	return anom, bgerr, index
}

// SSTTailCheck flags biased or noisy SSTs at the start or end of a drifter
// record by comparison with a background. Daytime, icy, unmatched and
// unreliable-background reports are left out of the comparison.
//
// A long window first moves in from each end while the window's trimmed mean
// or spread exceeds what drifter and background errors allow. A short window
// then moves in over the remaining reports while at least ShortWinNBad of its
// points exceed the per-point limit. Reports before the last bad window at
// the start, and after it at the end, fail. If the whole record is bad there
// is no tail and nothing fails.
func SSTTailCheck(reps []SSTReport, p TailParams) ([]domain.Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(reps)
	points := make([]Point, n)
	for i, r := range reps {
		points[i] = r.Point
	}
	if Validate(points) != nil {
		return fill(n, domain.Untestable), nil
	}

	anom, bgerr, index := usableBackgrounds(reps, p.BackgroundErrLim)
	if len(anom) == 0 {
		return fill(n, domain.Passed), nil
	}
	start, end := longTail(anom, bgerr, p)
	start, end = shortTail(start, end, anom, bgerr, p)
	if start >= end {
		return fill(n, domain.Passed), nil
	}

	flags := make([]bool, n)
	for i := range flags {
		if start != -1 && i <= index[start] {
			flags[i] = true
		}
		if end != len(anom) && i >= index[end] {
			flags[i] = true
		}
	}
	return outcomes(flags), nil
}

// longTail returns the last index of the bad start and the first index of the
// bad end; -1 and len(anom) mean no tail.
func longTail(anom, bgerr []float64, p TailParams) (start, end int) {
	n := len(anom)
	start, end = -1, n
	win := p.LongWinLen
	mid := (win - 1) / 2
	if n < win {
		return start, end
	}
	errLim := math.Sqrt(p.BackgroundErrLim)
	for _, forward := range []bool{true, false} {
		a, b := orient(anom, forward), orient(bgerr, forward)
		for ix := 0; ix <= n-win; ix++ {
			wa, wb := a[ix:ix+win], b[ix:ix+win]
			if anyAbove(wb, errLim) {
				break
			}
			avg := stats.TrimmedMean(wa, 100)
			sd := stats.TrimmedStdDev(wa, 100)
			bgAvg := stats.Mean(wb)
			bgRMS := math.Sqrt(meanSquare(wb))
			biased := math.Abs(avg) > p.LongErrStdN*math.Hypot(p.DrifInter, bgAvg)
			noisy := sd > math.Hypot(p.DrifIntra, bgRMS)
			if !biased && !noisy {
				break
			}
			if forward {
				start = ix + mid
			} else {
				end = n - 1 - ix - mid
			}
		}
	}
	return start, end
}

// shortTail narrows the tails found by longTail.
func shortTail(start, end int, anom, bgerr []float64, p TailParams) (int, int) {
	if start >= end {
		return start, end
	}
	first, last := start+1, end-1
	npass := last - first + 1
	win := p.ShortWinLen
	if npass < win {
		return start, end
	}
	errLim := math.Sqrt(p.BackgroundErrLim)
	for _, forward := range []bool{true, false} {
		a := orient(anom[first:last+1], forward)
		b := orient(bgerr[first:last+1], forward)
		for ix := 0; ix <= npass-win; ix++ {
			wa, wb := a[ix:ix+win], b[ix:ix+win]
			if anyAbove(wb, errLim) {
				break
			}
			bad := 0
			for k := range wa {
				limit := p.ShortErrStdN * math.Sqrt(wb[k]*wb[k]+p.DrifInter*p.DrifInter+p.DrifIntra*p.DrifIntra)
				if wa[k] > limit || wa[k] < -limit {
					bad++
				}
			}
			if bad < p.ShortWinNBad {
				break
			}
			// The last window failing means every window failed.
			step := 1
			if ix == npass-win {
				step = win
			}
			if forward {
				start += step
			} else {
				end -= step
			}
		}
	}
	return start, end
}

func orient(xs []float64, forward bool) []float64 {
	if forward {
		return xs
	}
	r := make([]float64, len(xs))
	for i, x := range xs {
		r[len(xs)-1-i] = x
	}
	return r
}

func anyAbove(xs []float64, lim float64) bool {
	for _, x := range xs {
		if x > lim {
			return true
		}
	}
	return false
}

func meanSquare(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x * x
	}
	return s / float64(len(xs))
}

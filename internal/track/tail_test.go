package track

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// nightReports returns equatorial drifter reports one minute apart from
// midnight with the given SST anomalies against a 20 degC background.
func nightReports(anoms []float64) []SSTReport {
	reps := make([]SSTReport, len(anoms))
	for i, a := range anoms {
		reps[i] = SSTReport{
			Point:              Point{Lat: 0, Lon: 0, Time: t0.Add(time.Duration(i) * time.Minute)},
			SST:                20 + a,
			Background:         20,
			Ice:                math.NaN(),
			BackgroundVariance: 0.01,
		}
	}
	return reps
}

func smallTail() TailParams {
	p := DefaultTailParams()
	p.LongWinLen = 5
	p.ShortWinLen = 3
	return p
}

func TestSSTTailCheck_BiasedStart(t *testing.T) {
	anoms := make([]float64, 40)
	for i := range 10 {
		anoms[i] = 5
	}
	got, err := SSTTailCheck(nightReports(anoms), smallTail())
	require.NoError(t, err)
	// The last failing long window is centred two reports past the bias.
	assert.Equal(t, span(0, 11), failedIndices(got))
}

func TestSSTTailCheck_NoisyEndCaughtByShortWindow(t *testing.T) {
	anoms := make([]float64, 41)
	anoms[38], anoms[39], anoms[40] = 4, 4, 4
	reps := nightReports(anoms)
	// An unmatched report is left out of the comparison.
	reps[20].Background = math.NaN()
	reps[20].SST = 99

	p := smallTail()
	p.LongWinLen = 101
	got, err := SSTTailCheck(reps, p)
	require.NoError(t, err)
	assert.Equal(t, []int{39, 40}, failedIndices(got))
}

func TestSSTTailCheck_WholeRecordBadHasNoTail(t *testing.T) {
	anoms := make([]float64, 30)
	for i := range anoms {
		anoms[i] = 5
	}
	got, err := SSTTailCheck(nightReports(anoms), smallTail())
	require.NoError(t, err)
	assert.Equal(t, fill(30, domain.Passed), got)
}

func TestSSTTailCheck_DaytimeReportsExcluded(t *testing.T) {
	anoms := make([]float64, 20)
	for i := range anoms {
		anoms[i] = 10
	}
	reps := nightReports(anoms)
	for i := range reps {
		reps[i].Time = reps[i].Time.Add(12 * time.Hour)
	}
	got, err := SSTTailCheck(reps, smallTail())
	require.NoError(t, err)
	assert.Equal(t, fill(20, domain.Passed), got)
}

func TestSSTTailCheck_UnreliableBackgroundsExcluded(t *testing.T) {
	anoms := make([]float64, 21)
	for i := range anoms {
		anoms[i] = 10
	}
	reps := nightReports(anoms)
	for i := range reps {
		switch i % 3 {
		case 0:
			reps[i].Ice = 0.5
		case 1:
			reps[i].BackgroundVariance = 0.5
		case 2:
			reps[i].Background = math.NaN()
		}
	}
	got, err := SSTTailCheck(reps, smallTail())
	require.NoError(t, err)
	assert.Equal(t, fill(21, domain.Passed), got)
}

func TestSSTTailCheck_UnsortedTrackIsUntestable(t *testing.T) {
	reps := nightReports(make([]float64, 6))
	reps[5].Time = t0.Add(-time.Minute)
	got, err := SSTTailCheck(reps, smallTail())
	require.NoError(t, err)
	assert.Equal(t, fill(6, domain.Untestable), got)
}

func TestTailParams_Validate(t *testing.T) {
	require.NoError(t, DefaultTailParams().Validate())
	p := DefaultTailParams()
	p.LongWinLen = 120
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
	p = DefaultTailParams()
	p.ShortWinNBad = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
	p = DefaultTailParams()
	p.DrifInter = -1
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
}

func TestLongTail_Indices(t *testing.T) {
	anoms := make([]float64, 20)
	bgerr := make([]float64, 20)
	for i := range bgerr {
		bgerr[i] = 0.1
	}
	anoms[18], anoms[19] = 6, 6
	start, end := longTail(anoms, bgerr, smallTail())
	assert.Equal(t, -1, start)
	// Windows ending in the bias: [.., 6, 6] mean 2.4, [.., 6] mean 1.2 both
	// exceed 3 * hypot(0.29, 0.1); the clean window stops the scan.
	assert.Equal(t, 16, end)
}

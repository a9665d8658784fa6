package track

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

var t0 = time.Date(2003, time.March, 21, 0, 0, 0, 0, time.UTC)

// equatorTrack puts one report every step along the equator at the given
// longitudes.
func equatorTrack(step time.Duration, lons []float64) []Point {
	points := make([]Point, len(lons))
	for i, lon := range lons {
		points[i] = Point{Lat: 0, Lon: lon, Time: t0.Add(time.Duration(i) * step)}
	}
	return points
}

func failedIndices(outs []domain.Outcome) []int {
	var idx []int
	for i, o := range outs {
		if o == domain.Failed {
			idx = append(idx, i)
		}
	}
	return idx
}

func span(from, to int) []int {
	var idx []int
	for i := from; i <= to; i++ {
		idx = append(idx, i)
	}
	return idx
}

func TestSphereDistance(t *testing.T) {
	assert.InDelta(t, 111.195, SphereDistance(0, 0, 0, 1), 1e-3)
	assert.InDelta(t, 111.195, SphereDistance(0, 0, 1, 0), 1e-3)
	assert.Equal(t, 0.0, SphereDistance(45, 45, 45, 45))
	assert.InDelta(t, math.Pi*EarthRadius, SphereDistance(0, 0, 0, 180), 1e-6)
	assert.InDelta(t, SphereDistance(10, 170, 12, -175), SphereDistance(12, -175, 10, 170), 1e-9)
	assert.InDelta(t, 1.5725, AgroundTolerance, 1e-3)
}

func TestValidate(t *testing.T) {
	good := equatorTrack(time.Hour, []float64{0, 0, 1})
	require.NoError(t, Validate(good))

	same := equatorTrack(0, []float64{0, 1})
	require.NoError(t, Validate(same))

	unsorted := equatorTrack(time.Hour, []float64{0, 1, 2})
	unsorted[2].Time = t0.Add(-time.Hour)
	assert.ErrorIs(t, Validate(unsorted), ErrUnsorted)

	missing := equatorTrack(time.Hour, []float64{0, math.NaN()})
	assert.ErrorIs(t, Validate(missing), ErrIncomplete)

	noTime := equatorTrack(time.Hour, []float64{0, 1})
	noTime[1].Time = time.Time{}
	assert.ErrorIs(t, Validate(noTime), ErrIncomplete)
}

func TestSpeedCheck_SlowTrackPasses(t *testing.T) {
	lons := make([]float64, 20)
	for i := range lons {
		lons[i] = 0.1 * float64(i)
	}
	got, err := SpeedCheck(equatorTrack(6*time.Hour, lons), DefaultSpeedParams())
	require.NoError(t, err)
	assert.Empty(t, failedIndices(got))
}

func TestSpeedCheck_FastTrackFails(t *testing.T) {
	lons := make([]float64, 20)
	for i := range lons {
		lons[i] = float64(i)
	}
	got, err := SpeedCheck(equatorTrack(6*time.Hour, lons), DefaultSpeedParams())
	require.NoError(t, err)
	assert.Equal(t, span(0, 19), failedIndices(got))
}

func TestSpeedCheck_SpikeFailsWindowsThatTouchIt(t *testing.T) {
	lons := make([]float64, 13)
	for i := range lons {
		lons[i] = 0.1 * float64(i)
	}
	lons[6] += 5
	got, err := SpeedCheck(equatorTrack(6*time.Hour, lons), DefaultSpeedParams())
	require.NoError(t, err)
	assert.Equal(t, span(2, 10), failedIndices(got))
}

func TestSpeedCheck_ShortAndBadTracks(t *testing.T) {
	got, err := SpeedCheck(equatorTrack(time.Hour, []float64{0}), DefaultSpeedParams())
	require.NoError(t, err)
	assert.Equal(t, []domain.Outcome{domain.Passed}, got)

	points := equatorTrack(6*time.Hour, []float64{0, 1, 2, 3, 4, 5})
	points[3].Time = t0
	got, err = SpeedCheck(points, DefaultSpeedParams())
	require.NoError(t, err)
	assert.Equal(t, fill(6, domain.Untestable), got)

	_, err = SpeedCheck(points, SpeedParams{SpeedLimit: 2.5, MinWinPeriod: 2, MaxWinPeriod: 1})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

// groundingLons moves 0.1 degree per report for ten reports, then sits still.
func groundingLons(n int) []float64 {
	lons := make([]float64, n)
	for i := range lons {
		lons[i] = 0.1 * math.Min(float64(i), 10)
	}
	return lons
}

var smallAground = AgroundParams{SmoothWin: 3, MinWinPeriod: 1, MaxWinPeriod: 2}

func TestAgroundCheck_StationaryTailFails(t *testing.T) {
	got, err := AgroundCheck(equatorTrack(6*time.Hour, groundingLons(40)), smallAground)
	require.NoError(t, err)
	assert.Equal(t, span(10, 39), failedIndices(got))
}

func TestAgroundCheck_MovingAgainPasses(t *testing.T) {
	lons := groundingLons(50)
	for i := 40; i < 50; i++ {
		lons[i] = 1 + 0.1*float64(i-39)
	}
	got, err := AgroundCheck(equatorTrack(6*time.Hour, lons), smallAground)
	require.NoError(t, err)
	assert.Empty(t, failedIndices(got))

	got, err = NewAgroundCheck(equatorTrack(6*time.Hour, lons), smallAground)
	require.NoError(t, err)
	assert.Empty(t, failedIndices(got))
}

func TestAgroundCheck_AgroundThroughout(t *testing.T) {
	got, err := AgroundCheck(equatorTrack(6*time.Hour, make([]float64, 30)), smallAground)
	require.NoError(t, err)
	assert.Equal(t, span(0, 29), failedIndices(got))
}

func TestNewAgroundCheck_ComparesWithLastPoint(t *testing.T) {
	got, err := NewAgroundCheck(equatorTrack(6*time.Hour, groundingLons(40)), smallAground)
	require.NoError(t, err)
	assert.Equal(t, span(10, 39), failedIndices(got))
}

func TestAgroundCheck_ShortTrackPasses(t *testing.T) {
	got, err := AgroundCheck(equatorTrack(6*time.Hour, make([]float64, 41)), DefaultAgroundParams())
	require.NoError(t, err)
	assert.Equal(t, fill(41, domain.Passed), got)
}

func TestAgroundParams_Validate(t *testing.T) {
	require.NoError(t, DefaultAgroundParams().Validate(true))
	assert.ErrorIs(t, AgroundParams{SmoothWin: 4, MinWinPeriod: 1, MaxWinPeriod: 2}.Validate(true), ErrInvalidParams)
	assert.ErrorIs(t, AgroundParams{SmoothWin: 3, MinWinPeriod: 0, MaxWinPeriod: 2}.Validate(true), ErrInvalidParams)
	assert.ErrorIs(t, AgroundParams{SmoothWin: 3, MinWinPeriod: 3, MaxWinPeriod: 2}.Validate(true), ErrInvalidParams)
	require.NoError(t, AgroundParams{SmoothWin: 3, MinWinPeriod: 3}.Validate(false))
}

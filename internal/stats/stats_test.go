package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDataGivenGood_FullRangeSumsToOne(t *testing.T) {
	var total float64
	for x := -5.0; x <= 5.0; x++ {
		p, err := PDataGivenGood(x, 1, 5, -5, 0.3, 1.7)
		require.NoError(t, err)
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestPDataGivenGood_PeaksAtMean(t *testing.T) {
	atMean, err := PDataGivenGood(0, 0.1, 8, -8, 0, 1)
	require.NoError(t, err)
	away, err := PDataGivenGood(3, 0.1, 8, -8, 0, 1)
	require.NoError(t, err)
	assert.Greater(t, atMean, away)
}

func TestPDataGivenGood_InvalidInputs(t *testing.T) {
	tests := []struct {
		name                    string
		x, q, rHi, rLo, mu, sig float64
	}{
		{"zero quantization", 0, 0, 8, -8, 0, 1},
		{"zero sigma", 0, 0.1, 8, -8, 0, 0},
		{"equal limits", 0, 0.1, 8, 8, 0, 1},
		{"below range", -9, 0.1, 8, -8, 0, 1},
		{"above range", 9, 0.1, 8, -8, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PDataGivenGood(tt.x, tt.q, tt.rHi, tt.rLo, tt.mu, tt.sig)
			require.Error(t, err)
		})
	}
}

func TestPDataGivenGross(t *testing.T) {
	p, err := PDataGivenGross(0.1, 8, -8)
	require.NoError(t, err)
	assert.InDelta(t, 1/161.0, p, 1e-12)

	_, err = PDataGivenGross(0.1, -8, 8)
	require.Error(t, err)
	_, err = PDataGivenGross(0, 8, -8)
	require.Error(t, err)
}

func TestPGross(t *testing.T) {
	near, err := PGross(0.05, 0.1, 8, -8, 0.2, 0, 1)
	require.NoError(t, err)
	far, err := PGross(0.05, 0.1, 8, -8, 6, 0, 1)
	require.NoError(t, err)

	assert.Less(t, near, 0.05)
	assert.Greater(t, far, 0.99)
	assert.GreaterOrEqual(t, near, 0.0)
	assert.LessOrEqual(t, far, 1.0)

	_, err = PGross(1.5, 0.1, 8, -8, 0, 0, 1)
	require.Error(t, err)
	_, err = PGross(0.05, 0.1, 8, -8, 0, 0, -1)
	require.Error(t, err)
}

func TestPGross_Underflow(t *testing.T) {
	// good-data mean far outside the allowed range
	_, err := PDataGivenGood(8, 0.1, 8, -8, 100, 1)
	require.ErrorIs(t, err, ErrUnresolved)
	_, err = PGross(0.05, 0.1, 8, -8, 8, 100, 1)
	require.ErrorIs(t, err, ErrUnresolved)

	// no prior gross error and a value the good model cannot produce
	_, err = PGross(0, 0.1, 8, -8, 8, -8, 0.1)
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestTrimmedMean(t *testing.T) {
	xs := []float64{100, 1, 2, 3, 4, 5, 6, 7, 8, -100}
	assert.InDelta(t, 4.5, TrimmedMean(xs, 10), 1e-12)
	assert.InDelta(t, 3.6, TrimmedMean(xs, 0), 1e-12)
	assert.Equal(t, 100.0, xs[0], "input must not be reordered")
}

func TestTrimmedStdDev(t *testing.T) {
	xs := []float64{-50, 2, 4, 4, 4, 5, 5, 7, 9, 50}
	// After trimming one value from each end: population sd of 2,4,4,4,5,5,7,9 is 2.
	assert.InDelta(t, 2.0, TrimmedStdDev(xs, 10), 1e-12)
}

func TestWinsorisedMean(t *testing.T) {
	m, err := WinsorisedMean([]float64{1, 2, 3, 4, 5, 6, 7, 100})
	require.NoError(t, err)
	// 3,3,3,4,5,6,6,6
	assert.InDelta(t, 4.5, m, 1e-12)

	m, err = WinsorisedMean([]float64{1, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, m, 1e-12)

	_, err = WinsorisedMean(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMissingMean(t *testing.T) {
	m, ok := MissingMean([]float64{1, math.NaN(), 3})
	require.True(t, ok)
	assert.InDelta(t, 2.0, m, 1e-12)

	_, ok = MissingMean([]float64{math.NaN()})
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
}

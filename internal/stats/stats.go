// Package stats holds the small numerical routines shared by the buddy and
// track checks: gross-error probabilities and resistant averages.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrEmpty is returned by averages of an empty sample.
var ErrEmpty = errors.New("empty sample")

// ErrUnresolved is returned when a probability normaliser underflows to zero
// and the ratio it divides has no value.
var ErrUnresolved = errors.New("probability underflows")

// PDataGivenGood is the probability of observing x, known only to a multiple
// of the quantization q and constrained to [rLo, rHi], when good data are
// normal with mean mu and standard deviation sigma.
func PDataGivenGood(x, q, rHi, rLo, mu, sigma float64) (float64, error) {
	switch {
	case q <= 0:
		return 0, fmt.Errorf("quantization not positive: q = %v", q)
	case sigma <= 0:
		return 0, fmt.Errorf("standard deviation not positive: sigma = %v", sigma)
	case rLo >= rHi:
		return 0, fmt.Errorf("lower limit not below upper limit: r_lo = %v, r_hi = %v", rLo, rHi)
	case x < rLo:
		return 0, fmt.Errorf("x below lower limit: x = %v, r_lo = %v", x, rLo)
	case x > rHi:
		return 0, fmt.Errorf("x above upper limit: x = %v, r_hi = %v", x, rHi)
	}
	upper := math.Min(x+0.5*q, rHi+0.5*q)
	lower := math.Max(x-0.5*q, rLo-0.5*q)
	s := sigma * math.Sqrt2
	norm := 0.5 * (math.Erf((rHi+0.5*q-mu)/s) - math.Erf((rLo-0.5*q-mu)/s))
	if norm <= 0 {
		return 0, fmt.Errorf("%w: no good-data mass in [%v, %v] for mu = %v, sigma = %v", ErrUnresolved, rLo, rHi, mu, sigma)
	}
	return 0.5 * (math.Erf((upper-mu)/s) - math.Erf((lower-mu)/s)) / norm, nil
}

// PDataGivenGross is the probability of a value at quantization q when gross
// errors are uniform over [rLo, rHi].
func PDataGivenGross(q, rHi, rLo float64) (float64, error) {
	if rHi < rLo {
		return 0, fmt.Errorf("lower limit above upper limit: r_lo = %v, r_hi = %v", rLo, rHi)
	}
	if q <= 0 {
		return 0, fmt.Errorf("quantization not positive: q = %v", q)
	}
	return 1 / (1 + (rHi-rLo)/q), nil
}

// PGross is the posterior probability that x is a gross error, given the
// prior p0 and the good-data distribution N(mu, sigma).
func PGross(p0, q, rHi, rLo, x, mu, sigma float64) (float64, error) {
	if p0 < 0 || p0 > 1 {
		return 0, fmt.Errorf("prior not in [0, 1]: p0 = %v", p0)
	}
	gross, err := PDataGivenGross(q, rHi, rLo)
	if err != nil {
		return 0, err
	}
	good, err := PDataGivenGood(x, q, rHi, rLo, mu, sigma)
	if err != nil {
		return 0, err
	}
	denom := p0*gross + (1-p0)*good
	if denom <= 0 {
		return 0, fmt.Errorf("%w: x = %v has no probability under either model", ErrUnresolved, x)
	}
	return p0 * gross / denom, nil
}

// Mean returns the arithmetic mean, NaN for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation, NaN for an empty slice.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// trimmed returns a sorted copy of xs with len/trim values removed from each
// end. A trim of 0 keeps everything.
func trimmed(xs []float64, trim int) []float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	if trim == 0 {
		return s
	}
	k := len(s) / trim
	return s[k : len(s)-k]
}

// TrimmedMean drops len/trim values from each end of the sorted sample and
// averages the rest; trim 10 trims a tenth from each end.
func TrimmedMean(xs []float64, trim int) float64 {
	return Mean(trimmed(xs, trim))
}

// TrimmedStdDev is the population standard deviation after the same trimming
// as TrimmedMean.
func TrimmedStdDev(xs []float64, trim int) float64 {
	return StdDev(trimmed(xs, trim))
}

// WinsorisedMean replaces the lowest and highest quarters of the sample by the
// first and third quartile values before averaging.
func WinsorisedMean(xs []float64) (float64, error) {
	n := len(xs)
	if n == 0 {
		return 0, ErrEmpty
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	lower, upper := 0, n-1
	var total float64
	if n >= 4 {
		lower = n / 4
		upper -= lower
		total = (s[lower] + s[upper]) * float64(lower)
	}
	for _, v := range s[lower : upper+1] {
		total += v
	}
	return total / float64(n), nil
}

// MissingMean averages the non-NaN values. ok is false when all are missing.
func MissingMean(xs []float64) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, x := range xs {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Median returns the middle of the sorted sample, averaging the two central
// values for an even length.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

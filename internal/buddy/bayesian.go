package buddy

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/stats"
)

// BayesianParams tunes the Bayesian buddy check.
type BayesianParams struct {
	// PriorGross is the prior probability of a gross error.
	PriorGross float64 `yaml:"prior_probability_of_gross_error"`
	// Quantization is the precision anomalies are reported to.
	Quantization float64 `yaml:"quantization_interval"`
	Radius       Radius  `yaml:"limits"`
	// NoiseScaling inflates the point-to-cell variance.
	NoiseScaling     float64 `yaml:"noise_scaling"`
	MeasurementError float64 `yaml:"measurement_error"`
	// MaximumAnomaly bounds the anomalies allowed by earlier checks; gross
	// errors are uniform on [-MaximumAnomaly, MaximumAnomaly].
	MaximumAnomaly  float64 `yaml:"maximum_anomaly"`
	FailProbability float64 `yaml:"fail_probability"`
}

// DefaultBayesianParams returns the usual tuning.
func DefaultBayesianParams() BayesianParams {
	return BayesianParams{
		PriorGross:       0.05,
		Quantization:     0.1,
		Radius:           Radius{2, 2, 4},
		NoiseScaling:     3,
		MeasurementError: 1,
		MaximumAnomaly:   8,
		FailProbability:  0.5,
	}
}

// Validate rejects parameters the probability model cannot use.
func (p BayesianParams) Validate() error {
	switch {
	case p.PriorGross < 0 || p.PriorGross > 1:
		return fmt.Errorf("%w: prior probability %v not in [0, 1]", ErrInvalidThresholds, p.PriorGross)
	case p.Quantization <= 0:
		return fmt.Errorf("%w: quantization interval %v not positive", ErrInvalidThresholds, p.Quantization)
	case p.MaximumAnomaly <= 0:
		return fmt.Errorf("%w: maximum anomaly %v not positive", ErrInvalidThresholds, p.MaximumAnomaly)
	case p.FailProbability < 0 || p.FailProbability > 1:
		return fmt.Errorf("%w: fail probability %v not in [0, 1]", ErrInvalidThresholds, p.FailProbability)
	case p.Radius.Lon < 0 || p.Radius.Lat < 0 || p.Radius.Pentad < 0:
		return fmt.Errorf("%w: negative search radius %+v", ErrInvalidThresholds, p.Radius)
	case p.NoiseScaling < 0 || p.MeasurementError < 0:
		return fmt.Errorf("%w: negative noise scaling or measurement error", ErrInvalidThresholds)
	}
	return nil
}

// Stdevs are the three standard deviation climatologies of the Bayesian
// check: cell to neighbourhood, point to cell, and neighbour cell to
// neighbourhood mean.
type Stdevs struct {
	CellToNeighbourhood *climatology.Field
	PointToCell         *climatology.Field
	NeighbourToMean     *climatology.Field
}

func stdevAt(f *climatology.Field, lat, lon float64, month, day int) (float64, error) {
	v, ok, err := f.Value(lat, lon, month, day)
	if err != nil {
		return 0, err
	}
	if !ok || v < 0 {
		return 1, nil
	}
	return v, nil
}

// BayesianLimits sets every populated cell's buddy mean and spread for the
// Bayesian check. The spread adds in quadrature the measurement error, the
// cell-to-neighbourhood deviation, the scaled point-to-cell deviation and the
// uncertainty of the neighbour mean, which shrinks with more neighbours.
func (g *Grid) BayesianLimits(sd Stdevs, p BayesianParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !g.averaged {
		g.Average()
	}
	sm2 := p.MeasurementError * p.MeasurementError
	for i, c := range g.cells {
		lat, lon, month, day := cellCentre(i)
		s1, err := stdevAt(sd.CellToNeighbourhood, lat, lon, month, day)
		if err != nil {
			return err
		}
		s2, err := stdevAt(sd.PointToCell, lat, lon, month, day)
		if err != nil {
			return err
		}
		s3, err := stdevAt(sd.NeighbourToMean, lat, lon, month, day)
		if err != nil {
			return err
		}

		means, nobs := g.Neighbours(p.Radius, i.x, i.y, i.p)
		if len(means) == 0 {
			c.bmean, c.bsd, c.buddies = 0, NoBuddyStdev, false
			continue
		}
		var tot float64
		for _, n := range nobs {
			tot += sm2/float64(n) + p.NoiseScaling*s2*s2/float64(n)
		}
		ntot := float64(len(nobs))
		sigmaBuddy := tot/(ntot*ntot) + s3*s3/ntot

		c.bmean = stats.Mean(means)
		c.bsd = math.Sqrt(sm2 + s1*s1 + p.NoiseScaling*s2*s2 + sigmaBuddy)
		c.buddies = true
	}
	return nil
}

// GrossErrorFlag maps a gross-error probability onto 0..9 by tenths.
func GrossErrorFlag(p float64) int {
	if p <= 0 {
		return 0
	}
	return min(int(math.Floor(p*10)), 9)
}

// BayesianResult is the outcome of one observation with its gross-error
// probability and flag. Probability is NaN for untested and untestable rows.
// Clamped is set when the anomaly was moved onto +-MaximumAnomaly before
// scoring.
type BayesianResult struct {
	Outcome     domain.Outcome
	Probability float64
	Flag        int
	Clamped     bool
}

// BayesianCheck is the Bayesian buddy check. An observation fails when its
// posterior probability of gross error exceeds p.FailProbability.
//
// The gross-error model is uniform on [-MaximumAnomaly, MaximumAnomaly], so
// an anomaly outside that range is scored at the nearer bound and its result
// is marked Clamped. Rows whose probability underflows are Untestable.
func BayesianCheck(obs []Obs, sd Stdevs, p BayesianParams) ([]BayesianResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g, err := buildGrid(obs)
	if err != nil {
		return nil, err
	}
	if err := g.BayesianLimits(sd, p); err != nil {
		return nil, err
	}

	rHi, rLo := p.MaximumAnomaly, -p.MaximumAnomaly
	results := make([]BayesianResult, len(obs))
	for k := range results {
		results[k].Probability = math.NaN()
	}
	outcomes, err := decide(g, obs, func(k int, c *cell) (domain.Outcome, error) {
		if c.bsd <= 0 {
			return domain.Untestable, nil
		}
		x := math.Min(math.Max(obs[k].Anomaly, rLo), rHi)
		results[k].Clamped = x != obs[k].Anomaly
		pg, err := stats.PGross(p.PriorGross, p.Quantization, rHi, rLo, x, c.bmean, c.bsd)
		switch {
		case errors.Is(err, stats.ErrUnresolved):
			return domain.Untestable, nil
		case err != nil:
			return domain.Untestable, fmt.Errorf("gross error probability: %w", err)
		}
		results[k].Probability = pg
		results[k].Flag = GrossErrorFlag(pg)
		if pg > p.FailProbability {
			return domain.Failed, nil
		}
		return domain.Passed, nil
	})
	if err != nil {
		return nil, err
	}
	for k, o := range outcomes {
		results[k].Outcome = o
	}
	return results, nil
}

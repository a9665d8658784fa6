package buddy

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/stats"
)

// ErrInvalidThresholds is returned for an observation-count table that the
// multiplier lookup cannot use.
var ErrInvalidThresholds = errors.New("invalid buddy thresholds")

// ThresholdMultiplier returns the multiplier for the last count limit that
// total exceeds. Limits must start at 0 and ascend, multipliers must be
// positive and both slices the same length. A total of 0 gets 4.
func ThresholdMultiplier(total int, nobLimits []int, multipliers []float64) (float64, error) {
	if err := validateThresholds(nobLimits, multipliers); err != nil {
		return 0, err
	}
	m := -1.0
	if total == 0 {
		m = 4
	}
	for i, limit := range nobLimits {
		if total > limit {
			m = multipliers[i]
		}
	}
	if m <= 0 {
		return 0, fmt.Errorf("%w: no multiplier for %d observations", ErrInvalidThresholds, total)
	}
	return m, nil
}

func validateThresholds(nobLimits []int, multipliers []float64) error {
	switch {
	case len(nobLimits) == 0:
		return fmt.Errorf("%w: no count limits", ErrInvalidThresholds)
	case len(nobLimits) != len(multipliers):
		return fmt.Errorf("%w: %d count limits but %d multipliers", ErrInvalidThresholds, len(nobLimits), len(multipliers))
	case slices.Min(multipliers) <= 0:
		return fmt.Errorf("%w: multipliers must be positive", ErrInvalidThresholds)
	case nobLimits[0] != 0:
		return fmt.Errorf("%w: lowest count limit is %d, want 0", ErrInvalidThresholds, nobLimits[0])
	case !slices.IsSorted(nobLimits):
		return fmt.Errorf("%w: count limits %v not ascending", ErrInvalidThresholds, nobLimits)
	}
	return nil
}

// Level is one search radius of the MDS check with the multiplier table used
// when the radius finds neighbours.
type Level struct {
	Radius      Radius    `yaml:"radius"`
	NobLimits   []int     `yaml:"number_of_obs_thresholds"`
	Multipliers []float64 `yaml:"multipliers"`
}

// Validate checks the level's multiplier table.
func (l Level) Validate() error {
	if l.Radius.Lon < 0 || l.Radius.Lat < 0 || l.Radius.Pentad < 0 {
		return fmt.Errorf("%w: negative search radius %+v", ErrInvalidThresholds, l.Radius)
	}
	return validateThresholds(l.NobLimits, l.Multipliers)
}

// DefaultLevels are the MDS search radii: 1 degree and 2 pentads, then 2
// degrees, then 4 pentads, then both.
func DefaultLevels() []Level {
	graded := func(r Radius) Level {
		return Level{Radius: r, NobLimits: []int{0, 5, 15, 100}, Multipliers: []float64{4, 3.5, 3, 2.5}}
	}
	flat := func(r Radius) Level {
		return Level{Radius: r, NobLimits: []int{0}, Multipliers: []float64{4}}
	}
	return []Level{
		graded(Radius{1, 1, 2}),
		flat(Radius{2, 2, 2}),
		graded(Radius{1, 1, 4}),
		flat(Radius{2, 2, 4}),
	}
}

// MDSLimits sets every populated cell's buddy mean and spread. The first
// level with any neighbour wins: the mean is the plain mean of the neighbour
// cells and the spread is the level's multiplier for the neighbour count
// times the climatological standard deviation at the cell. Cells with no
// neighbour at any level get mean 0 and spread NoBuddyStdev.
func (g *Grid) MDSLimits(stdev *climatology.Field, levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: no search levels", ErrInvalidThresholds)
	}
	for _, l := range levels {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if !g.averaged {
		g.Average()
	}
	for i, c := range g.cells {
		lat, lon, month, day := cellCentre(i)
		sd, ok, err := stdev.ValueMDS(lat, lon, month, day)
		if err != nil {
			return err
		}
		if !ok || sd < 0 {
			sd = 1
		}

		c.bmean, c.bsd, c.buddies = 0, NoBuddyStdev, false
		for _, l := range levels {
			means, nobs := g.Neighbours(l.Radius, i.x, i.y, i.p)
			if len(means) == 0 {
				continue
			}
			m, err := ThresholdMultiplier(sum(nobs), l.NobLimits, l.Multipliers)
			if err != nil {
				return err
			}
			c.bmean, c.bsd, c.buddies = stats.Mean(means), m*sd, true
			break
		}
	}
	return nil
}

// Obs is one report offered to a buddy check. Reference observations only
// serve as neighbours and are never flagged.
type Obs struct {
	Lat       float64
	Lon       float64
	Time      time.Time
	Anomaly   float64
	Reference bool
}

// usable reports whether o has a time and an on-grid position. Unusable
// observations are left out of the grid and come back Untestable.
func (o Obs) usable() bool {
	return !o.Time.IsZero() && onGrid(o.Lat, o.Lon)
}

func buildGrid(obs []Obs) (*Grid, error) {
	g := NewGrid()
	for _, o := range obs {
		if !o.usable() {
			continue
		}
		if err := g.Add(o.Lat, o.Lon, int(o.Time.Month()), o.Time.Day(), o.Anomaly); err != nil {
			return nil, err
		}
	}
	g.Average()
	return g, nil
}

// decide applies fn to every non-reference observation whose cell is
// testable. Reference rows stay Untested; rows without an on-grid position,
// a time or an anomaly, or whose cell has no buddies, are Untestable.
func decide(g *Grid, obs []Obs, fn func(k int, c *cell) (domain.Outcome, error)) ([]domain.Outcome, error) {
	out := make([]domain.Outcome, len(obs))
	for k, o := range obs {
		switch {
		case o.Reference:
			out[k] = domain.Untested
			continue
		case !o.usable() || math.IsNaN(o.Anomaly):
			out[k] = domain.Untestable
			continue
		}
		c, err := g.lookup(o.Lat, o.Lon, int(o.Time.Month()), o.Time.Day())
		if err != nil {
			return nil, err
		}
		if !c.buddies {
			out[k] = domain.Untestable
			continue
		}
		if out[k], err = fn(k, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MDSCheck is the classic buddy check. An observation fails when its anomaly
// differs from the buddy mean by at least the buddy spread.
func MDSCheck(obs []Obs, stdev *climatology.Field, levels []Level) ([]domain.Outcome, error) {
	g, err := buildGrid(obs)
	if err != nil {
		return nil, err
	}
	if err := g.MDSLimits(stdev, levels); err != nil {
		return nil, err
	}
	return decide(g, obs, func(k int, c *cell) (domain.Outcome, error) {
		if math.Abs(obs[k].Anomaly-c.bmean) >= c.bsd {
			return domain.Failed, nil
		}
		return domain.Passed, nil
	})
}

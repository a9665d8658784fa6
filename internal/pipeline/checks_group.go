package pipeline

import (
	"github.com/couchcryptid/marine-qc/internal/buddy"
	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

func groupChecks() map[string]Definition {
	return map[string]Definition{
		"mds_buddy_check":      {Inputs: locatedValue, Group: newMDSBuddy},
		"bayesian_buddy_check": {Inputs: locatedValue, Group: newBayesianBuddy},
	}
}

// buddyObs turns rows and reference rows into anomalies against normal.
func buddyObs(rows, reference []Row, normal lookup) []buddy.Obs {
	obs := make([]buddy.Obs, 0, len(rows)+len(reference))
	add := func(rs []Row, ref bool) {
		for _, r := range rs {
			ts, _ := r.Time(inDate)
			obs = append(obs, buddy.Obs{
				Lat:       r.Float(inLat),
				Lon:       r.Float(inLon),
				Time:      ts,
				Anomaly:   r.Float(inValue) - normal.at(r),
				Reference: ref,
			})
		}
	}
	add(rows, false)
	add(reference, true)
	return obs
}

func untestedGroup(rows, _ []Row) ([]domain.Outcome, error) {
	outs := make([]domain.Outcome, len(rows))
	for i := range outs {
		outs[i] = domain.Untested
	}
	return outs, nil
}

func newMDSBuddy(a Args, env Env) (GroupCheck, error) {
	args := struct {
		climArgs `yaml:",inline"`
		Stdev    string        `yaml:"stdev"`
		Levels   []buddy.Level `yaml:"levels"`
	}{Levels: buddy.DefaultLevels()}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	for _, l := range args.Levels {
		if err := l.Validate(); err != nil {
			return nil, invalid(err)
		}
	}
	normal, err := newLookup(env, args.climArgs)
	if err != nil {
		return nil, err
	}
	stdev, err := requireField(env, "stdev", args.Stdev)
	if err != nil {
		return nil, err
	}
	if absent(normal.field, stdev) {
		return untestedGroup, nil
	}
	return func(rows, reference []Row) ([]domain.Outcome, error) {
		outs, err := buddy.MDSCheck(buddyObs(rows, reference, normal), stdev, args.Levels)
		if err != nil {
			return nil, err
		}
		return outs[:len(rows)], nil
	}, nil
}

func newBayesianBuddy(a Args, env Env) (GroupCheck, error) {
	args := struct {
		climArgs             `yaml:",inline"`
		buddy.BayesianParams `yaml:",inline"`
		Stdevs               struct {
			CellToNeighbourhood string `yaml:"cell_to_neighbourhood"`
			PointToCell         string `yaml:"point_to_cell"`
			NeighbourToMean     string `yaml:"neighbour_to_mean"`
		} `yaml:"stdevs"`
	}{BayesianParams: buddy.DefaultBayesianParams()}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	if err := args.BayesianParams.Validate(); err != nil {
		return nil, invalid(err)
	}
	normal, err := newLookup(env, args.climArgs)
	if err != nil {
		return nil, err
	}
	var sd buddy.Stdevs
	for _, s := range []struct {
		arg, name string
		dst       **climatology.Field
	}{
		{"stdevs.cell_to_neighbourhood", args.Stdevs.CellToNeighbourhood, &sd.CellToNeighbourhood},
		{"stdevs.point_to_cell", args.Stdevs.PointToCell, &sd.PointToCell},
		{"stdevs.neighbour_to_mean", args.Stdevs.NeighbourToMean, &sd.NeighbourToMean},
	} {
		if *s.dst, err = requireField(env, s.arg, s.name); err != nil {
			return nil, err
		}
	}
	if absent(normal.field, sd.CellToNeighbourhood, sd.PointToCell, sd.NeighbourToMean) {
		return untestedGroup, nil
	}
	params := args.BayesianParams
	return func(rows, reference []Row) ([]domain.Outcome, error) {
		results, err := buddy.BayesianCheck(buddyObs(rows, reference, normal), sd, params)
		if err != nil {
			return nil, err
		}
		outs := make([]domain.Outcome, len(rows))
		for i := range outs {
			outs[i] = results[i].Outcome
		}
		return outs, nil
	}, nil
}

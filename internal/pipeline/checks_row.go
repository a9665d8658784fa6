package pipeline

import (
	"fmt"
	"math"

	"github.com/couchcryptid/marine-qc/internal/calendar"
	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/qc"
)

// Input names shared by the built-in checks.
const (
	inValue = "value"
	inLat   = "lat"
	inLon   = "lon"
	inDate  = "date"
)

var (
	valueInputs    = []string{inValue}
	positionInputs = []string{inLat, inLon}
	locatedInputs  = []string{inLat, inLon, inDate}
	locatedValue   = []string{inValue, inLat, inLon, inDate}
)

// fixed builds checks that take no arguments.
func fixed(fn RowCheck) func(Args, Env) (RowCheck, error) {
	return func(a Args, _ Env) (RowCheck, error) {
		return fn, a.Decode(&struct{}{})
	}
}

// requireField resolves a climatology argument that must be set.
func requireField(env Env, arg, name string) (*climatology.Field, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidArguments, arg)
	}
	return env.Climatology(name)
}

// climArgs select a climatology and how its cells are chosen.
type climArgs struct {
	Climatology string `yaml:"climatology"`
	MDSGrid     bool   `yaml:"mds_grid"`
}

// lookup finds a row's climatology value; NaN when none applies.
type lookup struct {
	field *climatology.Field
	mds   bool
}

func (l lookup) at(r Row) float64 {
	ts, ok := r.Time(inDate)
	if !ok {
		return math.NaN()
	}
	lat, lon := r.Float(inLat), r.Float(inLon)
	get := l.field.Value
	if l.mds {
		get = l.field.ValueMDS
	}
	v, found, err := get(lat, lon, int(ts.Month()), ts.Day())
	if err != nil || !found {
		return math.NaN()
	}
	return v
}

func newLookup(env Env, a climArgs) (lookup, error) {
	f, err := requireField(env, "climatology", a.Climatology)
	return lookup{field: f, mds: a.MDSGrid}, err
}

// absent reports whether any field was never loaded. A check against an
// absent climatology leaves its rows untested rather than failing them.
func absent(fields ...*climatology.Field) bool {
	for _, f := range fields {
		if f.IsMissing() {
			return true
		}
	}
	return false
}

func untested(Row) domain.Outcome { return domain.Untested }

func rowChecks() map[string]Definition {
	return map[string]Definition{
		"missing_value_check": {Inputs: valueInputs, Row: fixed(func(r Row) domain.Outcome {
			return qc.MissingValueCheck(r.Float(inValue))
		})},
		"value_check": {Inputs: valueInputs, Row: fixed(func(r Row) domain.Outcome {
			return qc.ValueCheck(r.Float(inValue))
		})},
		"hard_limit_check":  {Inputs: valueInputs, Row: newHardLimit},
		"climatology_check": {Inputs: locatedValue, Row: newClimatologyCheck},
		"no_normal_check":   {Inputs: locatedInputs, Row: newNoNormal},
		"climatology_plus_stdev_check": {
			Inputs: locatedValue, Row: newClimatologyPlusStdev,
		},
		"climatology_plus_stdev_with_lowbar_check": {
			Inputs: locatedValue, Row: newClimatologyLowbar,
		},
		"sst_freeze_check": {Inputs: valueInputs, Optional: []string{"uncertainty"}, Row: newSSTFreeze},
		"supersaturation_check": {Inputs: []string{"dpt", "at"}, Row: fixed(func(r Row) domain.Outcome {
			return qc.SupersaturationCheck(r.Float("dpt"), r.Float("at"))
		})},
		"wind_consistency_check": {Inputs: []string{"speed", "direction"}, Row: fixed(func(r Row) domain.Outcome {
			return qc.WindConsistencyCheck(r.Float("speed"), r.Float("direction"))
		})},
		"wind_calm_variable_check": {Inputs: []string{"speed", "direction"}, Row: newWindCalmVariable},
		"position_check": {Inputs: positionInputs, Target: TargetLocation, Row: fixed(func(r Row) domain.Outcome {
			return qc.PositionCheck(r.Float(inLat), r.Float(inLon))
		})},
		"date_check": {Inputs: []string{inDate}, Target: TargetTime, Row: newDateCheck},
		"time_check": {Inputs: []string{inDate}, Target: TargetTime, Row: fixed(func(r Row) domain.Outcome {
			ts, ok := r.Time(inDate)
			if !ok {
				return domain.Failed
			}
			return qc.TimeCheck(calendar.DecimalHour(ts))
		})},
		"day_check": {Inputs: locatedInputs, Row: newDayCheck},
	}
}

func newHardLimit(a Args, _ Env) (RowCheck, error) {
	var args struct {
		Limits []float64 `yaml:"limits"`
	}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	if len(args.Limits) != 2 {
		return nil, fmt.Errorf("%w: limits needs two values, got %d", ErrInvalidArguments, len(args.Limits))
	}
	lo, hi := args.Limits[0], args.Limits[1]
	return func(r Row) domain.Outcome {
		return qc.HardLimitCheck(r.Float(inValue), lo, hi)
	}, nil
}

func newClimatologyCheck(a Args, env Env) (RowCheck, error) {
	args := struct {
		climArgs `yaml:",inline"`
		Limit    float64 `yaml:"limit"`
	}{Limit: qc.DefaultClimatologyLimit}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	normal, err := newLookup(env, args.climArgs)
	if err != nil {
		return nil, err
	}
	if absent(normal.field) {
		return untested, nil
	}
	return func(r Row) domain.Outcome {
		return qc.ClimatologyCheck(r.Float(inValue), normal.at(r), args.Limit)
	}, nil
}

func newNoNormal(a Args, env Env) (RowCheck, error) {
	var args climArgs
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	normal, err := newLookup(env, args)
	if err != nil {
		return nil, err
	}
	if absent(normal.field) {
		return untested, nil
	}
	return func(r Row) domain.Outcome {
		return qc.NoNormalCheck(normal.at(r))
	}, nil
}

func newClimatologyPlusStdev(a Args, env Env) (RowCheck, error) {
	args := struct {
		climArgs    `yaml:",inline"`
		Stdev       string    `yaml:"stdev"`
		StdevLimits []float64 `yaml:"stdev_limits"`
		Limit       float64   `yaml:"limit"`
	}{Limit: 3}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	if len(args.StdevLimits) != 2 {
		return nil, fmt.Errorf("%w: stdev_limits needs two values, got %d", ErrInvalidArguments, len(args.StdevLimits))
	}
	normal, err := newLookup(env, args.climArgs)
	if err != nil {
		return nil, err
	}
	sd, err := newLookup(env, climArgs{Climatology: args.Stdev, MDSGrid: args.MDSGrid})
	if err != nil {
		return nil, err
	}
	if absent(normal.field, sd.field) {
		return untested, nil
	}
	lo, hi := args.StdevLimits[0], args.StdevLimits[1]
	return func(r Row) domain.Outcome {
		return qc.ClimatologyPlusStdevCheck(r.Float(inValue), normal.at(r), sd.at(r), lo, hi, args.Limit)
	}, nil
}

func newClimatologyLowbar(a Args, env Env) (RowCheck, error) {
	args := struct {
		climArgs `yaml:",inline"`
		Stdev    string  `yaml:"stdev"`
		Limit    float64 `yaml:"limit"`
		Lowbar   float64 `yaml:"lowbar"`
	}{Limit: 3}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	normal, err := newLookup(env, args.climArgs)
	if err != nil {
		return nil, err
	}
	sd, err := newLookup(env, climArgs{Climatology: args.Stdev, MDSGrid: args.MDSGrid})
	if err != nil {
		return nil, err
	}
	if absent(normal.field, sd.field) {
		return untested, nil
	}
	return func(r Row) domain.Outcome {
		return qc.ClimatologyPlusStdevWithLowbarCheck(r.Float(inValue), normal.at(r), sd.at(r), args.Limit, args.Lowbar)
	}, nil
}

func newSSTFreeze(a Args, _ Env) (RowCheck, error) {
	args := struct {
		FreezingPoint float64 `yaml:"freezing_point"`
		NSigma        float64 `yaml:"n_sigma"`
		Uncertainty   float64 `yaml:"uncertainty"`
	}{FreezingPoint: qc.DefaultFreezingPoint, NSigma: qc.DefaultFreezeNSigma}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	return func(r Row) domain.Outcome {
		u := args.Uncertainty
		if r.Has("uncertainty") {
			u = r.Float("uncertainty")
		}
		return qc.SSTFreezeCheck(r.Float(inValue), u, args.FreezingPoint, args.NSigma)
	}, nil
}

func newWindCalmVariable(a Args, _ Env) (RowCheck, error) {
	args := struct {
		VariableLimit float64 `yaml:"variable_limit"`
	}{VariableLimit: math.NaN()}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	return func(r Row) domain.Outcome {
		return qc.WindCalmVariableCheck(r.Float("speed"), r.Float("direction"), args.VariableLimit)
	}, nil
}

func newDateCheck(a Args, _ Env) (RowCheck, error) {
	args := struct {
		MinYear int `yaml:"min_year"`
		MaxYear int `yaml:"max_year"`
	}{MinYear: qc.DefaultMinYear, MaxYear: qc.DefaultMaxYear}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	return func(r Row) domain.Outcome {
		ts, ok := r.Time(inDate)
		if !ok {
			return domain.Failed
		}
		return qc.DateCheck(ts.Year(), int(ts.Month()), ts.Day(), args.MinYear, args.MaxYear)
	}, nil
}

func newDayCheck(a Args, _ Env) (RowCheck, error) {
	args := struct {
		HoursBack float64 `yaml:"time_since_sun_above_horizon"`
	}{HoursBack: 1}
	if err := a.Decode(&args); err != nil {
		return nil, err
	}
	return func(r Row) domain.Outcome {
		ts, _ := r.Time(inDate)
		return qc.DayCheck(ts, r.Float(inLat), r.Float(inLon), args.HoursBack)
	}, nil
}

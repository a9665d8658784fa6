package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/track"
)

var tailInputs = []string{inValue, inLat, inLon, inDate, "background", "background_variance"}

func trackChecks() map[string]Definition {
	return map[string]Definition{
		"speed_check":       {Inputs: locatedInputs, Track: newSpeedCheck},
		"aground_check":     {Inputs: locatedInputs, Track: newAgroundCheck(true)},
		"new_aground_check": {Inputs: locatedInputs, Track: newAgroundCheck(false)},
		"sst_tail_check":    {Inputs: tailInputs, Optional: []string{"ice"}, Track: newTailCheck},
		"few_check":         {Track: newFewCheck},
		"repeated_values_check": {
			Inputs: valueInputs, Track: newValueCountCheck(track.DefaultRepeatedParams, track.RepeatedValuesCheck),
		},
		"rounded_values_check": {
			Inputs: valueInputs, Track: newValueCountCheck(track.DefaultRoundedParams, track.RoundedValuesCheck),
		},
		"saturated_runs_check": {Inputs: []string{"at", "dpt", inDate}, Track: newSaturatedRuns},
	}
}

func points(rows []Row) []track.Point {
	pts := make([]track.Point, len(rows))
	for i, r := range rows {
		ts, _ := r.Time(inDate)
		pts[i] = track.Point{Lat: r.Float(inLat), Lon: r.Float(inLon), Time: ts}
	}
	return pts
}

func floats(rows []Row, name string) []float64 {
	xs := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = r.Float(name)
	}
	return xs
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
}

func newSpeedCheck(a Args, _ Env) (TrackCheck, error) {
	p := track.DefaultSpeedParams()
	if err := a.Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}
	return func(rows []Row) ([]domain.Outcome, error) {
		return track.SpeedCheck(points(rows), p)
	}, nil
}

func newAgroundCheck(windowed bool) func(Args, Env) (TrackCheck, error) {
	run := track.AgroundCheck
	if !windowed {
		run = track.NewAgroundCheck
	}
	return func(a Args, _ Env) (TrackCheck, error) {
		p := track.DefaultAgroundParams()
		if err := a.Decode(&p); err != nil {
			return nil, err
		}
		if err := p.Validate(windowed); err != nil {
			return nil, invalid(err)
		}
		return func(rows []Row) ([]domain.Outcome, error) {
			return run(points(rows), p)
		}, nil
	}
}

func newTailCheck(a Args, _ Env) (TrackCheck, error) {
	p := track.DefaultTailParams()
	if err := a.Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}
	return func(rows []Row) ([]domain.Outcome, error) {
		pts := points(rows)
		reps := make([]track.SSTReport, len(rows))
		for i, r := range rows {
			reps[i] = track.SSTReport{
				Point:              pts[i],
				SST:                r.Float(inValue),
				Background:         r.Float("background"),
				Ice:                r.Float("ice"),
				BackgroundVariance: r.Float("background_variance"),
			}
		}
		return track.SSTTailCheck(reps, p)
	}, nil
}

func newFewCheck(a Args, _ Env) (TrackCheck, error) {
	if err := a.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return func(rows []Row) ([]domain.Outcome, error) {
		return track.FewCheck(len(rows)), nil
	}, nil
}

func newValueCountCheck(defaults track.ValueCountParams,
	run func([]float64, track.ValueCountParams) ([]domain.Outcome, error),
) func(Args, Env) (TrackCheck, error) {
	return func(a Args, _ Env) (TrackCheck, error) {
		p := defaults
		if err := a.Decode(&p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, invalid(err)
		}
		return func(rows []Row) ([]domain.Outcome, error) {
			return run(floats(rows, inValue), p)
		}, nil
	}
}

func newSaturatedRuns(a Args, _ Env) (TrackCheck, error) {
	p := track.DefaultSaturationParams
	if err := a.Decode(&p); err != nil {
		return nil, err
	}
	if p.ShortestRun < 0 || p.MinTimeThreshold < 0 {
		return nil, fmt.Errorf("%w: negative run length or duration", ErrInvalidArguments)
	}
	return func(rows []Row) ([]domain.Outcome, error) {
		times := make([]time.Time, len(rows))
		for i, r := range rows {
			times[i], _ = r.Time(inDate)
		}
		return track.SaturatedRunsCheck(floats(rows, "at"), floats(rows, "dpt"), times, p)
	}, nil
}

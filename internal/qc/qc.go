// Package qc implements the single-report checks. Each check is a pure
// function of a value (or a few values) and explicit parameters and returns
// a domain.Outcome.
//
// Missing numbers are NaN. A missing input never passes: it fails, or is
// untestable when the missing piece is a parameter rather than data.
// Untestable otherwise means the parameters make the check meaningless, for
// example reversed limits.
package qc

import (
	"math"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

const (
	// DefaultFreezingPoint is the freezing point of sea water in degrees C.
	DefaultFreezingPoint = -1.8
	// DefaultFreezeNSigma is how many uncertainties below freezing fail.
	DefaultFreezeNSigma = 2.0
	// DefaultClimatologyLimit is the default largest allowed anomaly.
	DefaultClimatologyLimit = 8.0
)

// Outcome shorthands.
const (
	passed     = domain.Passed
	failed     = domain.Failed
	untestable = domain.Untestable
)

func missing(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func outcome(fail bool) domain.Outcome {
	if fail {
		return failed
	}
	return passed
}

// CombineOutcomes folds the outcomes of several checks on one value.
func CombineOutcomes(outcomes ...domain.Outcome) domain.Outcome {
	return domain.CombineOutcomes(outcomes...)
}

// MissingValueCheck fails a missing value.
func MissingValueCheck(v float64) domain.Outcome {
	return outcome(math.IsNaN(v))
}

// ValueCheck fails a value that is missing or not finite.
func ValueCheck(v float64) domain.Outcome {
	return outcome(math.IsNaN(v) || math.IsInf(v, 0))
}

// NoNormalCheck fails when no climatological normal is available.
func NoNormalCheck(normal float64) domain.Outcome {
	return outcome(math.IsNaN(normal))
}

// HardLimitCheck passes values within [lo, hi].
func HardLimitCheck(v, lo, hi float64) domain.Outcome {
	if missing(lo, hi) || hi <= lo {
		return untestable
	}
	if math.IsNaN(v) {
		return failed
	}
	return outcome(v < lo || v > hi)
}

// ClimatologyCheck fails a value more than limit away from its normal.
func ClimatologyCheck(v, normal, limit float64) domain.Outcome {
	if missing(v, normal, limit) {
		return failed
	}
	return outcome(math.Abs(v-normal) > limit)
}

// ClimatologyPlusStdevCheck fails a value whose standardised anomaly exceeds
// limit. The standard deviation is clipped into [stdevLo, stdevHi] first.
func ClimatologyPlusStdevCheck(v, normal, stdev, stdevLo, stdevHi, limit float64) domain.Outcome {
	if missing(stdevLo, stdevHi, limit) || stdevHi <= stdevLo || limit <= 0 {
		return untestable
	}
	if missing(v, normal, stdev) {
		return failed
	}
	s := math.Min(math.Max(stdev, stdevLo), stdevHi)
	return outcome(math.Abs(v-normal)/s > limit)
}

// ClimatologyPlusStdevWithLowbarCheck fails only when the standardised
// anomaly exceeds limit and the raw anomaly exceeds lowbar, so cells with a
// tiny standard deviation do not fail small anomalies.
func ClimatologyPlusStdevWithLowbarCheck(v, normal, stdev, limit, lowbar float64) domain.Outcome {
	if missing(limit, lowbar) || limit <= 0 {
		return untestable
	}
	if missing(v, normal, stdev) {
		return failed
	}
	if stdev <= 0 {
		return untestable
	}
	anom := math.Abs(v - normal)
	return outcome(anom/stdev > limit && anom > lowbar)
}

// SSTFreezeCheck fails an SST more than nSigma uncertainties below the
// freezing point.
func SSTFreezeCheck(sst, uncertainty, freezingPoint, nSigma float64) domain.Outcome {
	if missing(uncertainty, freezingPoint, nSigma) {
		return untestable
	}
	if math.IsNaN(sst) {
		return failed
	}
	return outcome(sst < freezingPoint-nSigma*uncertainty)
}

// SupersaturationCheck fails a dew point above the air temperature.
func SupersaturationCheck(dpt, at float64) domain.Outcome {
	if missing(dpt, at) {
		return failed
	}
	return outcome(dpt > at)
}

// WindConsistencyCheck fails a calm speed with a direction, or a non-calm
// speed without one. Directions are not range checked.
func WindConsistencyCheck(speed, direction float64) domain.Outcome {
	if missing(speed, direction) {
		return failed
	}
	return outcome((speed == 0) != (direction == 0))
}

// Direction codes for calm and variable winds.
const (
	DirectionCalm     = 361
	DirectionVariable = 362
)

// WindCalmVariableCheck fails a calm report (361) with a non-zero speed and
// a variable report (362) faster than variableLimit.
func WindCalmVariableCheck(speed, direction, variableLimit float64) domain.Outcome {
	if math.IsNaN(variableLimit) {
		return untestable
	}
	if missing(speed, direction) {
		return failed
	}
	switch direction {
	case DirectionCalm:
		return outcome(speed != 0)
	case DirectionVariable:
		return outcome(speed > variableLimit)
	}
	return passed
}

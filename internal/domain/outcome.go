package domain

import "fmt"

// Outcome is the result of a single quality-control check. It is a closed set:
// the zero value is Passed and no other values are valid.
type Outcome uint8

const (
	Passed Outcome = iota
	Failed
	Untestable
	Untested
)

var outcomeNames = [...]string{
	Passed:     "passed",
	Failed:     "failed",
	Untestable: "untestable",
	Untested:   "untested",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Valid reports whether o is one of the four defined outcomes.
func (o Outcome) Valid() bool {
	return o <= Untested
}

// ParseOutcome converts a name produced by String back into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for i, name := range outcomeNames {
		if name == s {
			return Outcome(i), nil
		}
	}
	return Untested, fmt.Errorf("unknown outcome %q", s)
}

// CombineOutcomes folds several outcomes for the same value into one:
// any Failed wins, then any Passed, then any Untested, else Untestable.
// An empty input is Untested.
func CombineOutcomes(outcomes ...Outcome) Outcome {
	if len(outcomes) == 0 {
		return Untested
	}
	var anyPassed, anyUntested bool
	for _, o := range outcomes {
		switch o {
		case Failed:
			return Failed
		case Passed:
			anyPassed = true
		case Untested:
			anyUntested = true
		}
	}
	switch {
	case anyPassed:
		return Passed
	case anyUntested:
		return Untested
	default:
		return Untestable
	}
}

package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze history stamps via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for history stamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// HistoryEntry renders the text appended to a header's history column for
// one QC run, e.g. ";2024-01-02 03:04:05. Marine QC".
func HistoryEntry(explain string) string {
	return ";" + clock.Now().UTC().Format(time.DateTime) + ". " + explain
}

// Now returns the current UTC time from the package clock.
func Now() time.Time {
	return clock.Now().UTC()
}

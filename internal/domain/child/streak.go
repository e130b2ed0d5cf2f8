package child

import (
	"time"

	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// StreakOutcome describes what a touch did to the streak.
type StreakOutcome int

const (
	// StreakUnchanged: same day, or a date before the last active day.
	StreakUnchanged StreakOutcome = iota
	// StreakStarted: first activity ever.
	StreakStarted
	// StreakExtended: activity on the day after the last active day.
	StreakExtended
	// StreakReset: at least one day was missed.
	StreakReset
)

// String returns the outcome as used in API responses and logs.
func (o StreakOutcome) String() string {
	switch o {
	case StreakStarted:
		return "started"
	case StreakExtended:
		return "extended"
	case StreakReset:
		return "reset"
	default:
		return "unchanged"
	}
}

// StreakState is the per-child streak bookkeeping.
type StreakState struct {
	Current        int
	LastActiveDate *time.Time
}

// Touch records activity on today (day granularity) and returns the new state.
//
//	never active -> 1
//	gap 0        -> unchanged
//	gap 1        -> +1
//	gap > 1      -> 1
//	gap < 0      -> unchanged (clock skew)
func (s StreakState) Touch(today time.Time) (StreakState, StreakOutcome) {
	day := timeutil.AsDate(today)

	if s.LastActiveDate == nil {
		return StreakState{Current: 1, LastActiveDate: &day}, StreakStarted
	}

	gap := timeutil.DaysBetween(*s.LastActiveDate, day)
	switch {
	case gap == 1:
		return StreakState{Current: s.Current + 1, LastActiveDate: &day}, StreakExtended
	case gap > 1:
		return StreakState{Current: 1, LastActiveDate: &day}, StreakReset
	default:
		return s, StreakUnchanged
	}
}

package progress

import (
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
)

// AttemptState is everything one attempt reads and writes, loaded by an
// AttemptStore under the child's write lock.
type AttemptState struct {
	Child  *child.Child
	Record *Record
	// IsNew is true when Record was created for this attempt.
	IsNew bool
	// Modules count the child's completed records per module, leaving out
	// Record itself.
	Modules child.ModuleCounts
	// Daily is filled in by Apply; the store adds it to the day's aggregate.
	Daily activity.Delta
}

// Outcome summarizes what an attempt changed.
type Outcome struct {
	StarsAdded   int
	LevelChanged bool
	Streak       child.StreakOutcome
	Minutes      int
}

// Apply runs the full attempt pipeline against s:
//
//  1. fold the attempt into the record and award stars
//  2. credit the child and recompute the level
//  3. touch the streak for today
//  4. build the daily delta, count the lesson and recompute the favorite
//     from completed records
func (s *AttemptState) Apply(a Attempt, today time.Time, levels child.LevelTable, now time.Time) Outcome {
	var out Outcome

	out.StarsAdded = s.Record.Apply(a, now)
	out.LevelChanged = s.Child.CreditStars(out.StarsAdded, levels, now)
	out.Streak = s.Child.TouchStreak(today, now)

	out.Minutes = a.Minutes()
	s.Daily = activity.NewDelta(today, s.Record.ContentType, out.StarsAdded, out.Minutes)
	completed := s.Modules
	if s.Record.Completed {
		completed = completed.Inc(s.Record.ContentType)
	}
	s.Child.CompleteLesson(completed, now)

	return out
}

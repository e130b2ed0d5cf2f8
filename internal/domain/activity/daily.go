// Package activity contains the per-day activity aggregate and the monthly
// streak reporting built on top of it. This is a pure domain layer.
package activity

import (
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// Daily is a child's rollup for one calendar day. Rows are created on the
// first attempt of the day and only ever incremented after that.
type Daily struct {
	ChildID          shared.ChildID
	Date             time.Time
	LessonsCompleted int
	StarsEarned      int
	MinutesPlayed    int
	LettersLearned   int
	NumbersLearned   int
	AnimalsLearned   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDaily returns a zeroed aggregate for (childID, date).
func NewDaily(childID shared.ChildID, date time.Time, now time.Time) *Daily {
	return &Daily{
		ChildID:   childID,
		Date:      timeutil.AsDate(date),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Delta is what one attempt adds to a day's aggregate.
type Delta struct {
	Date        time.Time
	ContentType shared.ContentType
	Lessons     int
	Stars       int
	Minutes     int
}

// NewDelta builds the delta for a single attempt.
func NewDelta(date time.Time, ct shared.ContentType, stars, minutes int) Delta {
	return Delta{
		Date:        timeutil.AsDate(date),
		ContentType: ct,
		Lessons:     1,
		Stars:       stars,
		Minutes:     minutes,
	}
}

// Letters, Numbers and Animals return the per-module increments carried by d.
func (d Delta) Letters() int { return d.moduleInc(shared.ContentLetter) }
func (d Delta) Numbers() int { return d.moduleInc(shared.ContentNumber) }
func (d Delta) Animals() int { return d.moduleInc(shared.ContentAnimal) }

func (d Delta) moduleInc(ct shared.ContentType) int {
	if d.ContentType == ct {
		return d.Lessons
	}
	return 0
}

// Accumulate adds d to the aggregate.
func (a *Daily) Accumulate(d Delta, now time.Time) {
	a.LessonsCompleted += d.Lessons
	a.StarsEarned += d.Stars
	a.MinutesPlayed += d.Minutes
	a.LettersLearned += d.Letters()
	a.NumbersLearned += d.Numbers()
	a.AnimalsLearned += d.Animals()
	a.UpdatedAt = now
}

// IsActive reports whether at least one lesson happened that day.
func (a *Daily) IsActive() bool {
	return a.LessonsCompleted > 0
}

// Clone returns a copy of the aggregate.
func (a *Daily) Clone() *Daily {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}


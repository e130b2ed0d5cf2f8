// Package progress models the per-item progress ledger and the star award
// policy that feeds a child's star balance.
package progress

import (
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// Key identifies a progress record. One record exists per key.
type Key struct {
	ChildID      shared.ChildID
	ContentType  shared.ContentType
	ContentID    int
	ActivityType shared.ActivityType
}

// Validate checks the key's enumerations and content ID.
func (k Key) Validate() error {
	if k.ChildID.IsEmpty() {
		return shared.ErrInvalidChild
	}
	if !k.ContentType.IsValid() {
		return shared.ErrInvalidContentType
	}
	if !k.ActivityType.IsValid() {
		return shared.ErrInvalidActivityType
	}
	if k.ContentID < 0 {
		return shared.ErrInvalidContentID
	}
	return nil
}

// Record is the persistent state for one (child, content, activity) combination.
type Record struct {
	ID string
	Key

	Attempts         int
	Completed        bool
	BestScore        int
	StarsEarned      int
	TimeSpentSeconds int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord returns a zeroed record for key.
func NewRecord(id string, key Key, now time.Time) *Record {
	return &Record{
		ID:        id,
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Attempt is one reported interaction. Nil fields were not provided.
type Attempt struct {
	Completed        *bool
	Score            *int
	TimeSpentSeconds *int
}

// Validate checks score and time bounds.
func (a Attempt) Validate() error {
	if a.Score != nil && (*a.Score < 0 || *a.Score > 100) {
		return shared.ErrScoreOutOfRange
	}
	if a.TimeSpentSeconds != nil && *a.TimeSpentSeconds < 0 {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// Seconds returns the time spent in this attempt, zero if absent.
func (a Attempt) Seconds() int {
	if a.TimeSpentSeconds == nil {
		return 0
	}
	return *a.TimeSpentSeconds
}

// Minutes returns whole minutes spent in this attempt.
func (a Attempt) Minutes() int {
	return a.Seconds() / 60
}

// Apply folds an attempt into the record and returns the additional stars
// it earned. Completion follows the latest call; best score and stars only
// ever grow; time accumulates.
func (r *Record) Apply(a Attempt, now time.Time) int {
	r.Attempts++

	if a.Completed != nil {
		r.Completed = *a.Completed
	}
	if a.Score != nil && *a.Score > r.BestScore {
		r.BestScore = *a.Score
	}
	r.TimeSpentSeconds += a.Seconds()

	completed := a.Completed != nil && *a.Completed
	additional := Award(a.Score, completed, r.StarsEarned)
	r.StarsEarned += additional

	r.UpdatedAt = now
	return additional
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

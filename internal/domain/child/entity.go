// Package child holds the child profile aggregate and the pure gamification
// rules that mutate it: the level table, the streak tracker and the favorite
// module selector.
package child

import (
	"fmt"
	"strings"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CHILD
// ══════════════════════════════════════════════════════════════════════════════

// Child is a learner profile. Identity fields belong to user management;
// every counter below is owned by the gamification engine.
type Child struct {
	ID       shared.ChildID
	Name     string
	Nickname string

	TotalStars            int
	Level                 int
	Streak                int
	LastActiveDate        *time.Time
	TotalLessonsCompleted int
	FavoriteModule        *shared.ContentType

	CreatedAt time.Time
	UpdatedAt time.Time

	events []shared.Event
}

// NewChildParams holds the parameters for creating a child profile.
type NewChildParams struct {
	ID       string
	Name     string
	Nickname string
}

// NewChild creates a fresh profile at level 1 with no activity.
func NewChild(params NewChildParams, now time.Time) (*Child, error) {
	id, err := shared.NewChildID(params.ID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" || len(name) > 100 {
		return nil, shared.ValidationError("child", "Create", "name must be 1-100 characters")
	}

	return &Child{
		ID:        id,
		Name:      name,
		Nickname:  strings.TrimSpace(params.Nickname),
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// CreditStars adds n stars and recomputes the level from levels.
// Non-positive n is ignored. Returns true if the level changed.
func (c *Child) CreditStars(n int, levels LevelTable, now time.Time) bool {
	if n <= 0 {
		return false
	}

	c.TotalStars += n
	c.touchUpdated(now)
	c.record(shared.StarsCreditedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStarsCredited, c.ID.String(), now),
		Amount:    n,
		NewTotal:  c.TotalStars,
	})

	info := levels.Of(c.TotalStars)
	if info.Level == c.Level {
		return false
	}

	old := c.Level
	c.Level = info.Level
	c.record(shared.LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, c.ID.String(), now),
		OldLevel:  old,
		NewLevel:  info.Level,
		Title:     info.Title,
	})
	return true
}

// TouchStreak applies the streak rules for activity on today.
func (c *Child) TouchStreak(today time.Time, now time.Time) StreakOutcome {
	prev := c.Streak
	next, outcome := StreakState{Current: c.Streak, LastActiveDate: c.LastActiveDate}.Touch(today)
	if outcome == StreakUnchanged {
		return outcome
	}

	c.Streak = next.Current
	c.LastActiveDate = next.LastActiveDate
	c.touchUpdated(now)

	var eventType shared.EventType
	switch outcome {
	case StreakStarted:
		eventType = shared.EventStreakStarted
	case StreakReset:
		eventType = shared.EventStreakReset
	default:
		eventType = shared.EventStreakExtended
	}
	c.record(shared.StreakChangedEvent{
		BaseEvent: shared.NewBaseEvent(eventType, c.ID.String(), now),
		Previous:  prev,
		Current:   c.Streak,
	})
	return outcome
}

// CompleteLesson counts one more lesson and recomputes the favorite module
// from counts of completed records, which must already reflect this attempt.
func (c *Child) CompleteLesson(counts ModuleCounts, now time.Time) {
	c.TotalLessonsCompleted++
	c.touchUpdated(now)

	fav := counts.Favorite()
	if sameModule(c.FavoriteModule, fav) {
		return
	}
	c.FavoriteModule = fav
	if fav != nil {
		c.record(shared.FavoriteChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventFavoriteChanged, c.ID.String(), now),
			Favorite:  fav.String(),
		})
	}
}

// LevelInfo returns the current level lookup against levels.
func (c *Child) LevelInfo(levels LevelTable) LevelInfo {
	return levels.Of(c.TotalStars)
}

// Events returns the events raised since the last PullEvents.
func (c *Child) Events() []shared.Event {
	return c.events
}

// PullEvents returns the raised events and clears them.
func (c *Child) PullEvents() []shared.Event {
	ev := c.events
	c.events = nil
	return ev
}

func (c *Child) record(e shared.Event) {
	c.events = append(c.events, e)
}

func (c *Child) touchUpdated(now time.Time) {
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

func sameModule(a, b *shared.ContentType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// String returns a short representation for logging.
func (c *Child) String() string {
	return fmt.Sprintf("Child{ID: %s, Stars: %d, Level: %d, Streak: %d}",
		c.ID, c.TotalStars, c.Level, c.Streak)
}

// Clone creates a deep copy of the child. Raised events are not copied.
func (c *Child) Clone() *Child {
	if c == nil {
		return nil
	}
	clone := *c
	clone.events = nil
	if c.LastActiveDate != nil {
		d := *c.LastActiveDate
		clone.LastActiveDate = &d
	}
	if c.FavoriteModule != nil {
		f := *c.FavoriteModule
		clone.FavoriteModule = &f
	}
	return &clone
}

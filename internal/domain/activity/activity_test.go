package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

func dec(d int) time.Time {
	return timeutil.Date(2024, time.December, d)
}

func activeDays(days ...int) []*Daily {
	out := make([]*Daily, 0, len(days))
	for _, d := range days {
		out = append(out, &Daily{ChildID: "c-1", Date: dec(d), LessonsCompleted: 2, StarsEarned: 3})
	}
	return out
}

func TestDaily_Accumulate(t *testing.T) {
	now := time.Now()
	a := NewDaily("c-1", dec(5).Add(13*time.Hour), now)
	assert.True(t, timeutil.IsSameDay(dec(5), a.Date))
	assert.False(t, a.IsActive())

	a.Accumulate(NewDelta(dec(5), shared.ContentLetter, 2, 3), now)
	a.Accumulate(NewDelta(dec(5), shared.ContentAnimal, 0, 0), now)
	a.Accumulate(NewDelta(dec(5), shared.ContentLetter, 1, 1), now)

	assert.Equal(t, 3, a.LessonsCompleted)
	assert.Equal(t, 3, a.StarsEarned)
	assert.Equal(t, 4, a.MinutesPlayed)
	assert.Equal(t, 2, a.LettersLearned)
	assert.Equal(t, 0, a.NumbersLearned)
	assert.Equal(t, 1, a.AnimalsLearned)
	assert.True(t, a.IsActive())
}

func TestBuildMonthlyStreak(t *testing.T) {
	t.Run("trailing run ending today", func(t *testing.T) {
		r := BuildMonthlyStreak(dec(1), activeDays(1, 2, 3, 5, 6, 7), dec(7), DefaultMonthlyTarget)

		assert.Equal(t, "2024-12", r.Month)
		assert.Equal(t, 3, r.LongestStreakThisMonth)
		assert.Equal(t, 3, r.CurrentStreak)
		assert.Equal(t, 6, r.TotalActiveDays)
		assert.Equal(t, 20, r.TargetDays)
		assert.Equal(t, 30, r.AchievementPercentage)
		assert.False(t, r.IsTargetMet)
		assert.Equal(t, StatusActive, r.Status)
		assert.Nil(t, r.Badge)
		assert.Equal(t, []string{
			"2024-12-01", "2024-12-02", "2024-12-03",
			"2024-12-05", "2024-12-06", "2024-12-07",
		}, r.CompletedDates)
	})

	t.Run("yesterday still counts", func(t *testing.T) {
		r := BuildMonthlyStreak(dec(1), activeDays(5, 6), dec(7), DefaultMonthlyTarget)
		assert.Equal(t, 2, r.CurrentStreak)
	})

	t.Run("older run is broken", func(t *testing.T) {
		r := BuildMonthlyStreak(dec(1), activeDays(1, 2, 3, 4), dec(10), DefaultMonthlyTarget)
		assert.Equal(t, 0, r.CurrentStreak)
		assert.Equal(t, 4, r.LongestStreakThisMonth)
		assert.Equal(t, StatusBroken, r.Status)
	})

	t.Run("empty month", func(t *testing.T) {
		r := BuildMonthlyStreak(dec(1), nil, dec(10), DefaultMonthlyTarget)
		assert.Equal(t, StatusNew, r.Status)
		assert.Zero(t, r.LongestStreakThisMonth)
		assert.Empty(t, r.CompletedDates)
	})

	t.Run("zero lesson rows and other months are ignored", func(t *testing.T) {
		days := activeDays(2)
		days = append(days,
			&Daily{Date: dec(3)},
			&Daily{Date: timeutil.Date(2024, time.November, 30), LessonsCompleted: 1},
		)
		r := BuildMonthlyStreak(dec(1), days, dec(20), DefaultMonthlyTarget)
		assert.Equal(t, 1, r.TotalActiveDays)
		assert.Equal(t, []string{"2024-12-02"}, r.CompletedDates)
	})
}

func TestBuildMonthlyStreak_Badges(t *testing.T) {
	span := func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	tests := []struct {
		days  int
		pct   int
		badge *Badge
	}{
		{9, 45, nil},
		{10, 50, ptrBadge(BadgeKeepGoing)},
		{15, 75, ptrBadge(BadgeGreatProgress)},
		{19, 95, ptrBadge(BadgeGreatProgress)},
		{20, 100, ptrBadge(BadgeChampion)},
		{25, 100, ptrBadge(BadgeChampion)},
	}

	for _, tt := range tests {
		r := BuildMonthlyStreak(dec(1), activeDays(span(tt.days)...), dec(31), DefaultMonthlyTarget)
		assert.Equal(t, tt.pct, r.AchievementPercentage, "days=%d", tt.days)
		assert.Equal(t, tt.badge, r.Badge, "days=%d", tt.days)
		assert.Equal(t, tt.days >= 20, r.IsTargetMet)
	}
}

func ptrBadge(b Badge) *Badge { return &b }

func TestBuildStreakCalendar(t *testing.T) {
	cal := BuildStreakCalendar(dec(15), activeDays(1, 7))

	assert.Equal(t, "2024-12", cal.Month)
	assert.Len(t, cal.Calendar, 31)
	assert.Equal(t, 31, cal.Stats.TotalDays)
	assert.Equal(t, 2, cal.Stats.ActiveDays)
	assert.Equal(t, 4, cal.Stats.TotalLessons)
	assert.Equal(t, 6, cal.Stats.TotalStars)

	entry, ok := cal.Calendar["2024-12-07"]
	require.True(t, ok)
	assert.Equal(t, CalendarDay{IsActive: true, LessonCount: 2, Stars: 3}, entry)
	assert.Equal(t, CalendarDay{}, cal.Calendar["2024-12-02"])
}

func TestBuildStreakCalendar_February(t *testing.T) {
	cal := BuildStreakCalendar(timeutil.Date(2024, time.February, 1), nil)
	assert.Len(t, cal.Calendar, 29)
	assert.Zero(t, cal.Stats.ActiveDays)
}

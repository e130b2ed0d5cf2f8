package activity

import (
	"math"
	"sort"
	"time"

	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// DefaultMonthlyTarget is the number of active days that earns the top badge.
const DefaultMonthlyTarget = 20

// StreakStatus summarizes a month at a glance.
type StreakStatus string

const (
	StatusActive StreakStatus = "active"
	StatusBroken StreakStatus = "broken"
	StatusNew    StreakStatus = "new"
)

// Badge is the reward shown for a month's progress.
type Badge string

const (
	BadgeChampion      Badge = "Champion"
	BadgeGreatProgress Badge = "Great Progress"
	BadgeKeepGoing     Badge = "Keep Going"
)

// MonthlyStreak is the month-scoped streak report.
type MonthlyStreak struct {
	Month                  string       `json:"month"`
	CurrentStreak          int          `json:"currentStreak"`
	LongestStreakThisMonth int          `json:"longestStreakThisMonth"`
	TotalActiveDays        int          `json:"totalActiveDays"`
	TargetDays             int          `json:"targetDays"`
	CompletedDates         []string     `json:"completedDates"`
	Status                 StreakStatus `json:"status"`
	AchievementPercentage  int          `json:"achievementPercentage"`
	IsTargetMet            bool         `json:"isTargetMet"`
	Badge                  *Badge       `json:"badge,omitempty"`
}

// CalendarDay is one entry of the streak calendar.
type CalendarDay struct {
	IsActive    bool `json:"isActive"`
	LessonCount int  `json:"lessonCount"`
	Stars       int  `json:"stars"`
}

// MonthStats are the calendar's month totals.
type MonthStats struct {
	TotalDays    int `json:"totalDays"`
	ActiveDays   int `json:"activeDays"`
	TotalLessons int `json:"totalLessons"`
	TotalStars   int `json:"totalStars"`
}

// StreakCalendar maps every date of a month to its activity.
type StreakCalendar struct {
	Month    string                 `json:"month"`
	Calendar map[string]CalendarDay `json:"calendar"`
	Stats    MonthStats             `json:"stats"`
}

// activeDatesIn returns the sorted distinct dates in month with lessons > 0.
func activeDatesIn(month time.Time, days []*Daily) []time.Time {
	first := timeutil.StartOfMonth(month)
	last := timeutil.EndOfMonth(month)

	seen := make(map[string]time.Time, len(days))
	for _, d := range days {
		if d == nil || !d.IsActive() {
			continue
		}
		date := timeutil.AsDate(d.Date)
		if timeutil.DaysBetween(first, date) < 0 || timeutil.DaysBetween(date, last) < 0 {
			continue
		}
		seen[timeutil.FormatDate(date)] = date
	}

	dates := make([]time.Time, 0, len(seen))
	for _, date := range seen {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// runs returns the longest run of consecutive days and the length of the
// trailing run. dates must be sorted and distinct.
func runs(dates []time.Time) (longest, trailing int) {
	for i := range dates {
		if i > 0 && timeutil.DaysBetween(dates[i-1], dates[i]) == 1 {
			trailing++
		} else {
			trailing = 1
		}
		longest = max(longest, trailing)
	}
	return longest, trailing
}

// BuildMonthlyStreak computes the monthly streak report. today decides
// whether the trailing run still counts as current: its last date must be
// today or yesterday.
func BuildMonthlyStreak(month time.Time, days []*Daily, today time.Time, target int) MonthlyStreak {
	if target <= 0 {
		target = DefaultMonthlyTarget
	}

	dates := activeDatesIn(month, days)
	longest, trailing := runs(dates)

	current := 0
	if n := len(dates); n > 0 {
		gap := timeutil.DaysBetween(dates[n-1], today)
		if gap == 0 || gap == 1 {
			current = trailing
		}
	}

	completed := make([]string, len(dates))
	for i, d := range dates {
		completed[i] = timeutil.FormatDate(d)
	}

	total := len(dates)
	pct := int(math.Min(100, math.Round(100*float64(total)/float64(target))))

	report := MonthlyStreak{
		Month:                  timeutil.FormatMonth(month),
		CurrentStreak:          current,
		LongestStreakThisMonth: longest,
		TotalActiveDays:        total,
		TargetDays:             target,
		CompletedDates:         completed,
		AchievementPercentage:  pct,
		IsTargetMet:            total >= target,
	}

	switch {
	case current > 0:
		report.Status = StatusActive
	case total > 0:
		report.Status = StatusBroken
	default:
		report.Status = StatusNew
	}

	report.Badge = badgeFor(report.IsTargetMet, pct)
	return report
}

func badgeFor(targetMet bool, pct int) *Badge {
	var b Badge
	switch {
	case targetMet:
		b = BadgeChampion
	case pct >= 75:
		b = BadgeGreatProgress
	case pct >= 50:
		b = BadgeKeepGoing
	default:
		return nil
	}
	return &b
}

// BuildStreakCalendar lays out every date of month with its activity.
func BuildStreakCalendar(month time.Time, days []*Daily) StreakCalendar {
	first := timeutil.StartOfMonth(month)
	n := timeutil.DaysInMonth(month)

	cal := StreakCalendar{
		Month:    timeutil.FormatMonth(month),
		Calendar: make(map[string]CalendarDay, n),
		Stats:    MonthStats{TotalDays: n},
	}
	for i := 0; i < n; i++ {
		cal.Calendar[timeutil.FormatDate(first.AddDate(0, 0, i))] = CalendarDay{}
	}

	for _, d := range days {
		if d == nil {
			continue
		}
		key := timeutil.FormatDate(timeutil.AsDate(d.Date))
		entry, ok := cal.Calendar[key]
		if !ok {
			continue
		}
		entry.LessonCount += d.LessonsCompleted
		entry.Stars += d.StarsEarned
		entry.IsActive = entry.LessonCount > 0
		cal.Calendar[key] = entry

		cal.Stats.TotalLessons += d.LessonsCompleted
		cal.Stats.TotalStars += d.StarsEarned
	}

	for _, entry := range cal.Calendar {
		if entry.IsActive {
			cal.Stats.ActiveDays++
		}
	}
	return cal
}

package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE SUMMARY
// The profile page in one call: level, streak, lifetime counters, the last
// seven days of activity and completion per module.
// ══════════════════════════════════════════════════════════════════════════════

// recentDays is the window of RecentActivity, today included.
const recentDays = 7

// ModuleProgress is completion of one module against its catalog size.
type ModuleProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProfileSummary is the result of GetProfileSummary.
type ProfileSummary struct {
	ChildID  string `json:"childId"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`

	child.LevelInfo
	TotalStars            int     `json:"totalStars"`
	TotalLessonsCompleted int     `json:"totalLessonsCompleted"`
	Streak                int     `json:"streak"`
	DaysActive            int     `json:"daysActive"`
	FavoriteModule        *string `json:"favoriteModule,omitempty"`

	RecentActivity []DailyActivityDTO `json:"recentActivity"`

	LettersProgress ModuleProgress `json:"lettersProgress"`
	NumbersProgress ModuleProgress `json:"numbersProgress"`
	AnimalsProgress ModuleProgress `json:"animalsProgress"`
}

// GetProfileSummaryHandler handles the profile summary query.
type GetProfileSummaryHandler struct {
	children child.Repository
	progress progress.Repository
	activity activity.Repository
	clock    timeutil.Clock
	levels   child.LevelTable
	catalog  Catalog
	read     reader
}

// NewGetProfileSummaryHandler creates the handler.
func NewGetProfileSummaryHandler(d Deps) *GetProfileSummaryHandler {
	d = d.withDefaults()
	return &GetProfileSummaryHandler{
		children: d.Children,
		progress: d.Progress,
		activity: d.Activity,
		clock:    d.Clock,
		levels:   d.Levels,
		catalog:  d.Catalog,
		read:     newReader(d.Retryable),
	}
}

// Handle builds the profile summary. The four reads run concurrently.
func (h *GetProfileSummaryHandler) Handle(ctx context.Context, childID string) (*ProfileSummary, error) {
	id, err := shared.NewChildID(childID)
	if err != nil {
		return nil, err
	}

	today := timeutil.TodayFrom(h.clock)
	from := timeutil.AddDays(today, -(recentDays - 1))

	var (
		kid       *child.Child
		completed child.ModuleCounts
		active    int
		recent    []*activity.Daily
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kid, err = readOne(gctx, h.read, func(ctx context.Context) (*child.Child, error) {
			return h.children.GetByID(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = readOne(gctx, h.read, func(ctx context.Context) (child.ModuleCounts, error) {
			return h.progress.CountCompleted(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		active, err = readOne(gctx, h.read, func(ctx context.Context) (int, error) {
			return h.activity.CountDays(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = readOne(gctx, h.read, func(ctx context.Context) ([]*activity.Daily, error) {
			return h.activity.ListRange(ctx, id, from, today)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ProfileSummary{
		ChildID:               kid.ID.String(),
		Name:                  kid.Name,
		Nickname:              kid.Nickname,
		LevelInfo:             kid.LevelInfo(h.levels),
		TotalStars:            kid.TotalStars,
		TotalLessonsCompleted: kid.TotalLessonsCompleted,
		Streak:                kid.Streak,
		DaysActive:            active,
		FavoriteModule:        favoriteString(kid.FavoriteModule),
		RecentActivity:        dailyDTOs(recent),
		LettersProgress:       h.module(completed, shared.ContentLetter),
		NumbersProgress:       h.module(completed, shared.ContentNumber),
		AnimalsProgress:       h.module(completed, shared.ContentAnimal),
	}, nil
}

func (h *GetProfileSummaryHandler) module(counts child.ModuleCounts, ct shared.ContentType) ModuleProgress {
	return ModuleProgress{Completed: counts.Get(ct), Total: h.catalog.Total(ct)}
}

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// defaultCalendarDays is the window used when no start date is given.
const defaultCalendarDays = 30

// GetActivityCalendarQuery selects a date range. Empty dates default to the
// last 30 days ending today.
type GetActivityCalendarQuery struct {
	ChildID   string
	StartDate string
	EndDate   string
}

// GetActivityCalendarHandler handles the activity calendar query.
type GetActivityCalendarHandler struct {
	children child.Repository
	activity activity.Repository
	clock    timeutil.Clock
	read     reader
}

// NewGetActivityCalendarHandler creates the handler.
func NewGetActivityCalendarHandler(d Deps) *GetActivityCalendarHandler {
	d = d.withDefaults()
	return &GetActivityCalendarHandler{
		children: d.Children,
		activity: d.Activity,
		clock:    d.Clock,
		read:     newReader(d.Retryable),
	}
}

// Handle returns the daily aggregates in range, oldest first.
func (h *GetActivityCalendarHandler) Handle(ctx context.Context, q GetActivityCalendarQuery) ([]DailyActivityDTO, error) {
	id, err := shared.NewChildID(q.ChildID)
	if err != nil {
		return nil, err
	}

	r, err := h.dateRange(q)
	if err != nil {
		return nil, err
	}

	if _, err := readOne(ctx, h.read, func(ctx context.Context) (*child.Child, error) {
		return h.children.GetByID(ctx, id)
	}); err != nil {
		return nil, err
	}

	days, err := readOne(ctx, h.read, func(ctx context.Context) ([]*activity.Daily, error) {
		return h.activity.ListRange(ctx, id, r.From, r.To)
	})
	if err != nil {
		return nil, err
	}
	return dailyDTOs(days), nil
}

func (h *GetActivityCalendarHandler) dateRange(q GetActivityCalendarQuery) (shared.DateRange, error) {
	today := timeutil.TodayFrom(h.clock)

	end := today
	if q.EndDate != "" {
		t, err := timeutil.ParseDate(q.EndDate)
		if err != nil {
			return shared.DateRange{}, shared.WrapError("activity", "Calendar", shared.ErrInvalidFormat, "invalid endDate", err)
		}
		end = t
	}

	start := timeutil.AddDays(end, -defaultCalendarDays)
	if q.StartDate != "" {
		t, err := timeutil.ParseDate(q.StartDate)
		if err != nil {
			return shared.DateRange{}, shared.WrapError("activity", "Calendar", shared.ErrInvalidFormat, "invalid startDate", err)
		}
		start = t
	}

	return shared.NewDateRange(start, end)
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY STREAK / STREAK CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// GetMonthlyStreakHandler serves both month-scoped reports.
type GetMonthlyStreakHandler struct {
	children child.Repository
	activity activity.Repository
	clock    timeutil.Clock
	target   int
	read     reader
}

// NewGetMonthlyStreakHandler creates the handler.
func NewGetMonthlyStreakHandler(d Deps) *GetMonthlyStreakHandler {
	d = d.withDefaults()
	return &GetMonthlyStreakHandler{
		children: d.Children,
		activity: d.Activity,
		clock:    d.Clock,
		target:   d.MonthlyTarget,
		read:     newReader(d.Retryable),
	}
}

// Streak returns the monthly streak report. An empty month means the
// current month.
func (h *GetMonthlyStreakHandler) Streak(ctx context.Context, childID, month string) (*activity.MonthlyStreak, error) {
	first, days, err := h.load(ctx, childID, month)
	if err != nil {
		return nil, err
	}
	report := activity.BuildMonthlyStreak(first, days, timeutil.TodayFrom(h.clock), h.target)
	return &report, nil
}

// Calendar returns the per-date streak calendar of a month.
func (h *GetMonthlyStreakHandler) Calendar(ctx context.Context, childID, month string) (*activity.StreakCalendar, error) {
	first, days, err := h.load(ctx, childID, month)
	if err != nil {
		return nil, err
	}
	cal := activity.BuildStreakCalendar(first, days)
	return &cal, nil
}

func (h *GetMonthlyStreakHandler) load(ctx context.Context, childID, month string) (time.Time, []*activity.Daily, error) {
	id, err := shared.NewChildID(childID)
	if err != nil {
		return time.Time{}, nil, err
	}

	first := timeutil.StartOfMonth(timeutil.TodayFrom(h.clock))
	if month != "" {
		m, err := timeutil.ParseMonth(month)
		if err != nil {
			return time.Time{}, nil, shared.WrapError("activity", "MonthlyStreak", shared.ErrInvalidFormat, shared.ErrInvalidMonth.Message, err)
		}
		first = m
	}

	if _, err := readOne(ctx, h.read, func(ctx context.Context) (*child.Child, error) {
		return h.children.GetByID(ctx, id)
	}); err != nil {
		return time.Time{}, nil, err
	}

	days, err := readOne(ctx, h.read, func(ctx context.Context) ([]*activity.Daily, error) {
		return h.activity.ListRange(ctx, id, first, timeutil.EndOfMonth(first))
	})
	if err != nil {
		return time.Time{}, nil, err
	}
	return first, days, nil
}

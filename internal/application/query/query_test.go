package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/application/command"
	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/memory"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.Event) error { return nil }

func dec(d int) time.Time {
	return timeutil.Date(2024, time.December, d).Add(9 * time.Hour)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store  *memory.Store
	clock  *clock
	record *command.RecordAttemptHandler
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, id := range ids {
		c, err := child.NewChild(child.NewChildParams{ID: id, Name: "Kid " + id, Nickname: "k"}, dec(1).UTC())
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), c))
	}

	clk := &clock{t: dec(1)}
	return &fixture{
		store: store,
		clock: clk,
		record: command.NewRecordAttemptHandler(store, nopPublisher{}, logger.Nop(),
			command.RecordAttemptHandlerConfig{Clock: clk}),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Children: f.store,
		Progress: f.store,
		Activity: f.store,
		Clock:    f.clock,
	}
}

func (f *fixture) attempt(t *testing.T, day int, childID, ct string, id, score int) {
	t.Helper()
	f.clock.set(dec(day))
	_, err := f.record.Handle(context.Background(), command.RecordAttemptCommand{
		ChildID:          childID,
		ContentType:      ct,
		ContentID:        id,
		ActivityType:     "quiz",
		Completed:        ptr(true),
		Score:            ptr(score),
		TimeSpentSeconds: ptr(90),
	})
	require.NoError(t, err)
}

// december plays on Dec 1,2,3,5,6,7 and leaves the clock on Dec 7.
// kid-1 ends with 7 lessons and 14 stars.
func december(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, "kid-1", "kid-2")
	for _, d := range []int{1, 2, 3, 5, 6, 7} {
		f.attempt(t, d, "kid-1", "letter", d, 85)
	}
	f.attempt(t, 7, "kid-1", "number", 4, 85)
	f.clock.set(dec(7))
	return f
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetProgressSummary(t *testing.T) {
	f := december(t)

	got, err := NewGetProgressSummaryHandler(f.deps()).Handle(context.Background(), "kid-1")
	require.NoError(t, err)

	assert.Equal(t, &ProgressSummary{
		LettersLearned: 6,
		NumbersLearned: 1,
		AnimalsLearned: 0,
		TotalStars:     14,
		Streak:         3,
		Level:          1,
	}, got)
}

func TestListProgress(t *testing.T) {
	f := december(t)
	h := NewListProgressHandler(f.deps())

	all, err := h.All(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Len(t, all, 7)

	letters, err := h.ByContentType(context.Background(), "kid-1", "letter")
	require.NoError(t, err)
	require.Len(t, letters, 6)
	for i := 1; i < len(letters); i++ {
		assert.Less(t, letters[i-1].ContentID, letters[i].ContentID)
	}
	assert.Equal(t, 2, letters[0].StarsEarned)
	assert.Equal(t, 90, letters[0].TimeSpentSeconds)

	empty, err := h.ByContentType(context.Background(), "kid-2", "animal")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = h.ByContentType(context.Background(), "kid-1", "colour")
	assert.True(t, shared.IsValidation(err))
}

func TestQueries_UnknownChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.deps()

	_, err := NewGetProgressSummaryHandler(d).Handle(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err), "summary: %v", err)

	_, err = NewListProgressHandler(d).All(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err), "list: %v", err)

	_, err = NewGetProfileSummaryHandler(d).Handle(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err), "profile: %v", err)

	_, err = NewGetActivityCalendarHandler(d).Handle(ctx, GetActivityCalendarQuery{ChildID: "ghost"})
	assert.True(t, shared.IsNotFound(err), "calendar: %v", err)

	_, err = NewGetMonthlyStreakHandler(d).Streak(ctx, "ghost", "")
	assert.True(t, shared.IsNotFound(err), "streak: %v", err)

	_, err = NewGetProgressSummaryHandler(d).Handle(ctx, "")
	assert.True(t, shared.IsValidation(err), "empty id: %v", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetProfileSummary(t *testing.T) {
	f := december(t)

	got, err := NewGetProfileSummaryHandler(f.deps()).Handle(context.Background(), "kid-1")
	require.NoError(t, err)

	assert.Equal(t, "kid-1", got.ChildID)
	assert.Equal(t, "Kid kid-1", got.Name)
	assert.Equal(t, 1, got.Level)
	assert.Equal(t, "Pemula", got.Title)
	assert.Equal(t, 36, got.StarsToNext)
	assert.Equal(t, 14, got.TotalStars)
	assert.Equal(t, 7, got.TotalLessonsCompleted)
	assert.Equal(t, 3, got.Streak)
	assert.Equal(t, 6, got.DaysActive)
	require.NotNil(t, got.FavoriteModule)
	assert.Equal(t, "letter", *got.FavoriteModule)

	require.Len(t, got.RecentActivity, 6)
	assert.Equal(t, "2024-12-01", got.RecentActivity[0].Date)
	assert.Equal(t, "2024-12-07", got.RecentActivity[5].Date)
	assert.Equal(t, 2, got.RecentActivity[5].LessonsCompleted)
	assert.Equal(t, 4, got.RecentActivity[5].StarsEarned)

	assert.Equal(t, ModuleProgress{Completed: 6, Total: 26}, got.LettersProgress)
	assert.Equal(t, ModuleProgress{Completed: 1, Total: 21}, got.NumbersProgress)
	assert.Equal(t, ModuleProgress{Completed: 0, Total: 15}, got.AnimalsProgress)
}

func TestGetProfileSummary_RecentWindowSlides(t *testing.T) {
	f := december(t)
	f.clock.set(dec(9))

	got, err := NewGetProfileSummaryHandler(f.deps()).Handle(context.Background(), "kid-1")
	require.NoError(t, err)

	require.Len(t, got.RecentActivity, 4)
	assert.Equal(t, "2024-12-03", got.RecentActivity[0].Date)
}

func TestGetProfileSummary_NewChild(t *testing.T) {
	f := newFixture(t, "kid-1")

	got, err := NewGetProfileSummaryHandler(f.deps()).Handle(context.Background(), "kid-1")
	require.NoError(t, err)

	assert.Nil(t, got.FavoriteModule)
	assert.NotNil(t, got.RecentActivity)
	assert.Empty(t, got.RecentActivity)
	assert.Equal(t, 50, got.StarsToNext)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

func TestGetActivityCalendar(t *testing.T) {
	f := december(t)
	h := NewGetActivityCalendarHandler(f.deps())
	ctx := context.Background()

	t.Run("defaults to the last 30 days", func(t *testing.T) {
		days, err := h.Handle(ctx, GetActivityCalendarQuery{ChildID: "kid-1"})
		require.NoError(t, err)
		require.Len(t, days, 6)
		assert.Equal(t, "2024-12-01", days[0].Date)
		assert.Equal(t, 1, days[0].LettersLearned)
		assert.Equal(t, 1, days[0].MinutesPlayed)
	})

	t.Run("explicit range", func(t *testing.T) {
		days, err := h.Handle(ctx, GetActivityCalendarQuery{
			ChildID:   "kid-1",
			StartDate: "2024-12-02",
			EndDate:   "2024-12-05",
		})
		require.NoError(t, err)
		dates := make([]string, 0, len(days))
		for _, d := range days {
			dates = append(dates, d.Date)
		}
		assert.Equal(t, []string{"2024-12-02", "2024-12-03", "2024-12-05"}, dates)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := h.Handle(ctx, GetActivityCalendarQuery{
			ChildID:   "kid-1",
			StartDate: "2024-12-05",
			EndDate:   "2024-12-02",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidDateRange)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := h.Handle(ctx, GetActivityCalendarQuery{ChildID: "kid-1", StartDate: "12/02/2024"})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestGetMonthlyStreak(t *testing.T) {
	f := december(t)
	h := NewGetMonthlyStreakHandler(f.deps())
	ctx := context.Background()

	got, err := h.Streak(ctx, "kid-1", "")
	require.NoError(t, err)

	assert.Equal(t, "2024-12", got.Month)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, 3, got.LongestStreakThisMonth)
	assert.Equal(t, 6, got.TotalActiveDays)
	assert.Equal(t, 20, got.TargetDays)
	assert.Equal(t, []string{
		"2024-12-01", "2024-12-02", "2024-12-03",
		"2024-12-05", "2024-12-06", "2024-12-07",
	}, got.CompletedDates)
	assert.Equal(t, activity.StatusActive, got.Status)
	assert.Equal(t, 30, got.AchievementPercentage)
	assert.False(t, got.IsTargetMet)
	assert.Nil(t, got.Badge)

	t.Run("broken once a day is missed", func(t *testing.T) {
		f.clock.set(dec(10))
		defer f.clock.set(dec(7))

		got, err := h.Streak(ctx, "kid-1", "2024-12")
		require.NoError(t, err)
		assert.Equal(t, 0, got.CurrentStreak)
		assert.Equal(t, activity.StatusBroken, got.Status)
	})

	t.Run("new month", func(t *testing.T) {
		got, err := h.Streak(ctx, "kid-1", "2024-11")
		require.NoError(t, err)
		assert.Equal(t, activity.StatusNew, got.Status)
		assert.Empty(t, got.CompletedDates)
	})

	t.Run("bad month", func(t *testing.T) {
		_, err := h.Streak(ctx, "kid-1", "2024-13")
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("custom target", func(t *testing.T) {
		d := f.deps()
		d.MonthlyTarget = 6
		got, err := NewGetMonthlyStreakHandler(d).Streak(ctx, "kid-1", "")
		require.NoError(t, err)
		assert.True(t, got.IsTargetMet)
		require.NotNil(t, got.Badge)
		assert.Equal(t, activity.BadgeChampion, *got.Badge)
	})
}

func TestGetStreakCalendar(t *testing.T) {
	f := december(t)

	got, err := NewGetMonthlyStreakHandler(f.deps()).Calendar(context.Background(), "kid-1", "2024-12")
	require.NoError(t, err)

	assert.Len(t, got.Calendar, 31)
	assert.Equal(t, activity.MonthStats{TotalDays: 31, ActiveDays: 6, TotalLessons: 7, TotalStars: 14}, got.Stats)
	assert.False(t, got.Calendar["2024-12-04"].IsActive)
	assert.Equal(t, activity.CalendarDay{IsActive: true, LessonCount: 2, Stars: 4}, got.Calendar["2024-12-07"])
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

type mockCache struct {
	mock.Mock
}

func (m *mockCache) SetTotal(ctx context.Context, childID shared.ChildID, total int) (bool, error) {
	args := m.Called(ctx, childID, total)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Top(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]progress.LeaderboardEntry)
	return entries, args.Error(1)
}

func (m *mockCache) Rebuild(ctx context.Context, entries []progress.LeaderboardEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func leaderboardFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, "kid-a", "kid-b", "kid-c")
	f.attempt(t, 1, "kid-a", "animal", 1, 70)
	f.attempt(t, 1, "kid-b", "animal", 1, 100)
	f.attempt(t, 1, "kid-c", "animal", 1, 100)
	f.attempt(t, 1, "kid-c", "animal", 2, 50)
	return f
}

func TestGetLeaderboard_FromStore(t *testing.T) {
	f := leaderboardFixture(t)
	h := NewGetLeaderboardHandler(f.deps())

	got, err := h.Handle(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []LeaderboardEntryDTO{
		{Rank: 1, ChildID: "kid-c", TotalStars: 4},
		{Rank: 2, ChildID: "kid-b", TotalStars: 3},
		{Rank: 3, ChildID: "kid-a", TotalStars: 1},
	}, got)

	top, err := h.Handle(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestGetLeaderboard_CacheMissRebuilds(t *testing.T) {
	f := leaderboardFixture(t)
	cache := &mockCache{}
	cache.On("Top", mock.Anything, 1).Return(nil, progress.ErrLeaderboardNotLoaded).Once()
	cache.On("Rebuild", mock.Anything, mock.MatchedBy(func(e []progress.LeaderboardEntry) bool {
		return len(e) == 3
	})).Return(nil).Once()

	d := f.deps()
	d.Cache = cache
	got, err := NewGetLeaderboardHandler(d).Handle(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []LeaderboardEntryDTO{{Rank: 1, ChildID: "kid-c", TotalStars: 4}}, got)
	cache.AssertExpectations(t)
}

func TestGetLeaderboard_CacheHit(t *testing.T) {
	cache := &mockCache{}
	cache.On("Top", mock.Anything, 10).Return([]progress.LeaderboardEntry{
		{ChildID: "kid-z", TotalStars: 99},
	}, nil).Once()

	got, err := NewGetLeaderboardHandler(Deps{Cache: cache}).Handle(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []LeaderboardEntryDTO{{Rank: 1, ChildID: "kid-z", TotalStars: 99}}, got)
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Rebuild", mock.Anything, mock.Anything)
}

func TestGetLeaderboard_CacheDownFallsBack(t *testing.T) {
	f := leaderboardFixture(t)
	cache := &mockCache{}
	cache.On("Top", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	cache.On("Rebuild", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	d := f.deps()
	d.Cache = cache
	d.Breaker = circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2))
	h := NewGetLeaderboardHandler(d)

	for i := 0; i < 3; i++ {
		got, err := h.Handle(context.Background(), 5)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	}

	// Top and Rebuild fail on the first call and open the breaker.
	assert.Equal(t, circuitbreaker.StateOpen, d.Breaker.State())
	cache.AssertNumberOfCalls(t, "Top", 1)
	cache.AssertNumberOfCalls(t, "Rebuild", 1)
}

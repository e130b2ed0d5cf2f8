// Package query contains read operations following the CQRS pattern.
// Queries never modify state; each one is a self-contained use case with its
// own request and response types.
package query

import (
	"context"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/retry"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Catalog holds the number of items in each learning module.
type Catalog struct {
	Letters int
	Numbers int
	Animals int
}

// DefaultCatalog is the shipped content catalog.
var DefaultCatalog = Catalog{Letters: 26, Numbers: 21, Animals: 15}

// Total returns the catalog size of ct.
func (c Catalog) Total(ct shared.ContentType) int {
	switch ct {
	case shared.ContentLetter:
		return c.Letters
	case shared.ContentNumber:
		return c.Numbers
	case shared.ContentAnimal:
		return c.Animals
	}
	return 0
}

// Deps bundles what the query handlers read from.
type Deps struct {
	Children child.Repository
	Progress progress.Repository
	Activity activity.Repository

	// Cache and Breaker are optional; without a cache the leaderboard is
	// always read from Progress.
	Cache   progress.LeaderboardCache
	Breaker *circuitbreaker.CircuitBreaker

	Clock         timeutil.Clock
	Levels        child.LevelTable
	Catalog       Catalog
	MonthlyTarget int

	// Retryable marks store errors worth another read attempt.
	Retryable func(error) bool

	Logger *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if len(d.Levels) == 0 {
		d.Levels = child.DefaultLevels
	}
	if d.Catalog == (Catalog{}) {
		d.Catalog = DefaultCatalog
	}
	if d.MonthlyTarget <= 0 {
		d.MonthlyTarget = activity.DefaultMonthlyTarget
	}
	if d.Retryable == nil {
		d.Retryable = shared.IsRetryable
	}
	if d.Cache != nil && d.Breaker == nil {
		d.Breaker = circuitbreaker.CacheBreaker(nil)
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

// reader runs store reads under the read retry policy. Domain errors such
// as not-found are never retried.
type reader struct {
	retrier *retry.Retrier
}

func newReader(retryable func(error) bool) reader {
	return reader{retrier: retry.ReadRetrier(func(err error) bool {
		if shared.IsNotFound(err) || shared.IsValidation(err) {
			return false
		}
		return retryable(err)
	})}
}

func readOne[T any](ctx context.Context, r reader, op func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithData(ctx, r.retrier, op)
}

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRecordDTO is the wire form of a progress record.
type ProgressRecordDTO struct {
	ID               string    `json:"id"`
	ChildID          string    `json:"childId"`
	ContentType      string    `json:"contentType"`
	ContentID        int       `json:"contentId"`
	ActivityType     string    `json:"activityType"`
	Attempts         int       `json:"attempts"`
	Completed        bool      `json:"completed"`
	BestScore        int       `json:"bestScore"`
	StarsEarned      int       `json:"starsEarned"`
	TimeSpentSeconds int       `json:"timeSpent"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewProgressRecordDTO converts a record.
func NewProgressRecordDTO(r *progress.Record) ProgressRecordDTO {
	return ProgressRecordDTO{
		ID:               r.ID,
		ChildID:          r.ChildID.String(),
		ContentType:      r.ContentType.String(),
		ContentID:        r.ContentID,
		ActivityType:     r.ActivityType.String(),
		Attempts:         r.Attempts,
		Completed:        r.Completed,
		BestScore:        r.BestScore,
		StarsEarned:      r.StarsEarned,
		TimeSpentSeconds: r.TimeSpentSeconds,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func recordDTOs(records []*progress.Record) []ProgressRecordDTO {
	out := make([]ProgressRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, NewProgressRecordDTO(r))
	}
	return out
}

// DailyActivityDTO is the wire form of one day's aggregate.
type DailyActivityDTO struct {
	Date             string `json:"date"`
	LessonsCompleted int    `json:"lessonsCompleted"`
	StarsEarned      int    `json:"starsEarned"`
	MinutesPlayed    int    `json:"minutesPlayed"`
	LettersLearned   int    `json:"lettersLearned"`
	NumbersLearned   int    `json:"numbersLearned"`
	AnimalsLearned   int    `json:"animalsLearned"`
}

// NewDailyActivityDTO converts a daily aggregate.
func NewDailyActivityDTO(d *activity.Daily) DailyActivityDTO {
	return DailyActivityDTO{
		Date:             timeutil.FormatDate(d.Date),
		LessonsCompleted: d.LessonsCompleted,
		StarsEarned:      d.StarsEarned,
		MinutesPlayed:    d.MinutesPlayed,
		LettersLearned:   d.LettersLearned,
		NumbersLearned:   d.NumbersLearned,
		AnimalsLearned:   d.AnimalsLearned,
	}
}

func dailyDTOs(days []*activity.Daily) []DailyActivityDTO {
	out := make([]DailyActivityDTO, 0, len(days))
	for _, d := range days {
		out = append(out, NewDailyActivityDTO(d))
	}
	return out
}

func favoriteString(ct *shared.ContentType) *string {
	if ct == nil {
		return nil
	}
	s := ct.String()
	return &s
}

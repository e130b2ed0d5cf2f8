package command

import (
	"context"
	"fmt"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTEMPT COMMAND
// Folds one reported interaction into the progress ledger and every derived
// counter of the child: stars, level, streak, daily aggregate, lessons and
// favorite module. All of it commits as one unit or not at all.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptCommand contains the data of one attempt.
type RecordAttemptCommand struct {
	ChildID      string `json:"childId" validate:"required,max=64"`
	ContentType  string `json:"contentType" validate:"required,oneof=letter number animal"`
	ContentID    int    `json:"contentId" validate:"gte=0"`
	ActivityType string `json:"activityType" validate:"required,oneof=learn quiz game"`

	// Optional fields; nil means "not reported".
	Completed        *bool `json:"completed,omitempty"`
	Score            *int  `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	TimeSpentSeconds *int  `json:"timeSpent,omitempty" validate:"omitempty,gte=0"`
}

var recordAttemptFieldErrors = fieldErrors{
	"ChildID":          shared.ErrInvalidChild,
	"ContentType":      shared.ErrInvalidContentType,
	"ContentID":        shared.ErrInvalidContentID,
	"ActivityType":     shared.ErrInvalidActivityType,
	"Score":            shared.ErrScoreOutOfRange,
	"TimeSpentSeconds": shared.ErrNegativeTimeSpent,
}

// Validate validates the command.
func (c RecordAttemptCommand) Validate() error {
	if err := check(c, "progress", "RecordAttempt", recordAttemptFieldErrors); err != nil {
		return err
	}
	if err := c.key().Validate(); err != nil {
		return err
	}
	return c.attempt().Validate()
}

func (c RecordAttemptCommand) key() progress.Key {
	return progress.Key{
		ChildID:      shared.ChildID(c.ChildID),
		ContentType:  shared.ContentType(c.ContentType),
		ContentID:    c.ContentID,
		ActivityType: shared.ActivityType(c.ActivityType),
	}
}

func (c RecordAttemptCommand) attempt() progress.Attempt {
	return progress.Attempt{
		Completed:        c.Completed,
		Score:            c.Score,
		TimeSpentSeconds: c.TimeSpentSeconds,
	}
}

// RecordAttemptResult contains the persisted record and the child's new state.
type RecordAttemptResult struct {
	Record *progress.Record

	StarsAdded       int
	TotalStars       int
	Level            int
	LevelTitle       string
	StarsToNextLevel int
	LevelUp          bool

	Streak        int
	StreakOutcome child.StreakOutcome

	TotalLessonsCompleted int
	FavoriteModule        *shared.ContentType

	Events     []shared.Event
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptHandler handles the RecordAttemptCommand.
type RecordAttemptHandler struct {
	store     progress.AttemptStore
	publisher shared.EventPublisher
	levels    child.LevelTable
	clock     timeutil.Clock
	log       *logger.Logger
}

// RecordAttemptHandlerConfig contains configuration for the handler.
type RecordAttemptHandlerConfig struct {
	Levels child.LevelTable
	Clock  timeutil.Clock
}

// DefaultRecordAttemptHandlerConfig returns default configuration.
func DefaultRecordAttemptHandlerConfig() RecordAttemptHandlerConfig {
	return RecordAttemptHandlerConfig{
		Levels: child.DefaultLevels,
		Clock:  timeutil.SystemClock{},
	}
}

// NewRecordAttemptHandler creates a new RecordAttemptHandler.
// publisher may be nil when nothing listens for progress events.
func NewRecordAttemptHandler(
	store progress.AttemptStore,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config RecordAttemptHandlerConfig,
) *RecordAttemptHandler {
	defaults := DefaultRecordAttemptHandlerConfig()
	if len(config.Levels) == 0 {
		config.Levels = defaults.Levels
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if log == nil {
		log = logger.Nop()
	}

	return &RecordAttemptHandler{
		store:     store,
		publisher: publisher,
		levels:    config.Levels,
		clock:     config.Clock,
		log:       log.With(logger.Component("record_attempt")),
	}
}

// Handle executes the record attempt command.
func (h *RecordAttemptHandler) Handle(ctx context.Context, cmd RecordAttemptCommand) (*RecordAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	key := cmd.key()
	attempt := cmd.attempt()

	now := h.clock.Now()
	today := timeutil.StartOfDay(now)
	stamp := now.UTC()

	var (
		outcome progress.Outcome
		record  *progress.Record
		kid     *child.Child
		events  []shared.Event
	)

	start := time.Now()
	err := h.store.RecordAttempt(ctx, key, func(state *progress.AttemptState) error {
		outcome = state.Apply(attempt, today, h.levels, stamp)
		events = state.Child.PullEvents()
		record = state.Record.Clone()
		kid = state.Child.Clone()
		return nil
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}

		logger.FromContextOr(ctx, h.log).Error("attempt transaction failed",
			logger.Alert(),
			logger.Operation("RecordAttempt"),
			logger.ChildID(key.ChildID.String()),
			logger.ContentType(key.ContentType.String()),
			logger.ContentID(key.ContentID),
			logger.ActivityType(key.ActivityType.String()),
			logger.Err(err),
		)
		return nil, fmt.Errorf("%w: %w", shared.ErrAttemptNotPersisted, err)
	}

	h.log.Info("attempt recorded",
		logger.ChildID(key.ChildID.String()),
		logger.ContentType(key.ContentType.String()),
		logger.ContentID(key.ContentID),
		logger.ActivityType(key.ActivityType.String()),
		logger.Stars(outcome.StarsAdded),
		logger.Streak(kid.Streak),
		logger.Latency(time.Since(start)),
	)

	if h.publisher != nil && len(events) > 0 {
		if err := h.publisher.Publish(ctx, events...); err != nil {
			h.log.Warn("failed to publish progress events",
				logger.ChildID(key.ChildID.String()),
				logger.Err(err),
			)
		}
	}

	info := kid.LevelInfo(h.levels)
	return &RecordAttemptResult{
		Record:                record,
		StarsAdded:            outcome.StarsAdded,
		TotalStars:            kid.TotalStars,
		Level:                 kid.Level,
		LevelTitle:            info.Title,
		StarsToNextLevel:      info.StarsToNext,
		LevelUp:               outcome.LevelChanged,
		Streak:                kid.Streak,
		StreakOutcome:         outcome.Streak,
		TotalLessonsCompleted: kid.TotalLessonsCompleted,
		FavoriteModule:        kid.FavoriteModule,
		Events:                events,
		RecordedAt:            stamp,
	}, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT STORE
// One transaction per attempt. The child row is locked first, so every
// writer for the same child is serialized; different children never block.
// ══════════════════════════════════════════════════════════════════════════════

// AttemptStore implements progress.AttemptStore for PostgreSQL.
type AttemptStore struct {
	conn *Connection
	now  func() time.Time
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(conn *Connection) *AttemptStore {
	return &AttemptStore{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// RecordAttempt implements progress.AttemptStore.
func (s *AttemptStore) RecordAttempt(ctx context.Context, key progress.Key, fn func(*progress.AttemptState) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		c, err := scanChild(tx.QueryRow(ctx,
			`SELECT `+childColumns+` FROM children WHERE id = $1 FOR UPDATE`, key.ChildID.String()))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrChildNotFound
			}
			return fmt.Errorf("failed to lock child: %w", err)
		}

		rec, isNew, err := s.loadRecord(ctx, tx, key)
		if err != nil {
			return err
		}

		modules, err := countOtherCompleted(ctx, tx, key)
		if err != nil {
			return err
		}

		state := &progress.AttemptState{
			Child:   c,
			Record:  rec,
			IsNew:   isNew,
			Modules: modules,
		}
		if err := fn(state); err != nil {
			return err
		}

		if err := upsertRecord(ctx, tx, state.Record); err != nil {
			return err
		}
		if err := updateChild(ctx, tx, state.Child); err != nil {
			return err
		}
		return accumulateDaily(ctx, tx, key.ChildID, state)
	})
}

func (s *AttemptStore) loadRecord(ctx context.Context, q Querier, key progress.Key) (*progress.Record, bool, error) {
	row := q.QueryRow(ctx, `SELECT `+recordColumns+` FROM progress_records
		WHERE child_id = $1 AND content_type = $2 AND content_id = $3 AND activity_type = $4`,
		key.ChildID.String(), key.ContentType.String(), key.ContentID, key.ActivityType.String())

	rec, err := scanRecord(row)
	if err == nil {
		return rec, false, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("failed to load progress record: %w", err)
	}
	return progress.NewRecord(uuid.NewString(), key, s.now()), true, nil
}

// countOtherCompleted counts the child's completed records per module,
// skipping the record the attempt is about to rewrite.
func countOtherCompleted(ctx context.Context, q Querier, key progress.Key) (child.ModuleCounts, error) {
	var m child.ModuleCounts
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE content_type = 'letter')::int,
		       COUNT(*) FILTER (WHERE content_type = 'number')::int,
		       COUNT(*) FILTER (WHERE content_type = 'animal')::int
		FROM progress_records
		WHERE child_id = $1 AND completed
		  AND NOT (content_type = $2 AND content_id = $3 AND activity_type = $4)`,
		key.ChildID.String(), key.ContentType.String(), key.ContentID, key.ActivityType.String(),
	).Scan(&m.Letters, &m.Numbers, &m.Animals)
	if err != nil {
		return m, fmt.Errorf("failed to count completed progress: %w", err)
	}
	return m, nil
}

func upsertRecord(ctx context.Context, q Querier, r *progress.Record) error {
	query := `
		INSERT INTO progress_records (
			id, child_id, content_type, content_id, activity_type,
			attempts, completed, best_score, stars_earned, time_spent_seconds,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (child_id, content_type, content_id, activity_type) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			completed = EXCLUDED.completed,
			best_score = GREATEST(progress_records.best_score, EXCLUDED.best_score),
			stars_earned = GREATEST(progress_records.stars_earned, EXCLUDED.stars_earned),
			time_spent_seconds = EXCLUDED.time_spent_seconds,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		r.ID,
		r.ChildID.String(),
		r.ContentType.String(),
		r.ContentID,
		r.ActivityType.String(),
		r.Attempts,
		r.Completed,
		r.BestScore,
		r.StarsEarned,
		r.TimeSpentSeconds,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress record: %w", err)
	}
	return nil
}

func updateChild(ctx context.Context, q Querier, c *child.Child) error {
	query := `
		UPDATE children SET
			total_stars = $1,
			level = $2,
			streak = $3,
			last_active_date = $4,
			total_lessons_completed = $5,
			favorite_module = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := q.Exec(ctx, query,
		c.TotalStars,
		c.Level,
		c.Streak,
		dateOnly(c.LastActiveDate),
		c.TotalLessonsCompleted,
		favoriteToNull(c.FavoriteModule),
		c.UpdatedAt,
		c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrChildNotFound
	}
	return nil
}

func accumulateDaily(ctx context.Context, q Querier, childID shared.ChildID, state *progress.AttemptState) error {
	d := state.Daily
	if d.Lessons == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_activity (
			child_id, date, lessons_completed, stars_earned, minutes_played,
			letters_learned, numbers_learned, animals_learned, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (child_id, date) DO UPDATE SET
			lessons_completed = daily_activity.lessons_completed + EXCLUDED.lessons_completed,
			stars_earned = daily_activity.stars_earned + EXCLUDED.stars_earned,
			minutes_played = daily_activity.minutes_played + EXCLUDED.minutes_played,
			letters_learned = daily_activity.letters_learned + EXCLUDED.letters_learned,
			numbers_learned = daily_activity.numbers_learned + EXCLUDED.numbers_learned,
			animals_learned = daily_activity.animals_learned + EXCLUDED.animals_learned,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		childID.String(),
		dateOnly(&d.Date),
		d.Lessons,
		d.Stars,
		d.Minutes,
		d.Letters(),
		d.Numbers(),
		d.Animals(),
		state.Child.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to accumulate daily activity: %w", err)
	}
	return nil
}

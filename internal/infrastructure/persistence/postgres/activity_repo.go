package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// ListRange returns daily rows with from <= date <= to, oldest first.
func (r *ActivityRepository) ListRange(ctx context.Context, childID shared.ChildID, from, to time.Time) ([]*activity.Daily, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT child_id, date, lessons_completed, stars_earned, minutes_played,
		       letters_learned, numbers_learned, animals_learned, created_at, updated_at
		FROM daily_activity
		WHERE child_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		childID.String(), dateOnly(&from), dateOnly(&to))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily activity: %w", err)
	}
	defer rows.Close()

	var out []*activity.Daily
	for rows.Next() {
		var (
			d  activity.Daily
			id string
		)
		err := rows.Scan(&id, &d.Date, &d.LessonsCompleted, &d.StarsEarned, &d.MinutesPlayed,
			&d.LettersLearned, &d.NumbersLearned, &d.AnimalsLearned, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", err)
		}
		d.ChildID = shared.ChildID(id)
		d.Date = timeutil.AsDate(d.Date)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// CountDays returns the number of daily rows for a child.
func (r *ActivityRepository) CountDays(ctx context.Context, childID shared.ChildID) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*)::int FROM daily_activity WHERE child_id = $1`, childID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active days: %w", err)
	}
	return n, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

const recordColumns = `
	id, child_id, content_type, content_id, activity_type,
	attempts, completed, best_score, stars_earned, time_spent_seconds,
	created_at, updated_at`

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ListByChild returns all records of a child, most recently updated first.
func (r *ProgressRepository) ListByChild(ctx context.Context, childID shared.ChildID) ([]*progress.Record, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+recordColumns+` FROM progress_records
		WHERE child_id = $1 ORDER BY updated_at DESC, id`, childID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return collectRecords(rows)
}

// ListByContentType returns a child's records for one module ordered by content ID.
func (r *ProgressRepository) ListByContentType(ctx context.Context, childID shared.ChildID, ct shared.ContentType) ([]*progress.Record, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+recordColumns+` FROM progress_records
		WHERE child_id = $1 AND content_type = $2
		ORDER BY content_id, activity_type`, childID.String(), ct.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s progress: %w", ct, err)
	}
	return collectRecords(rows)
}

// CountCompleted counts completed records per module.
func (r *ProgressRepository) CountCompleted(ctx context.Context, childID shared.ChildID) (child.ModuleCounts, error) {
	var m child.ModuleCounts
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE content_type = 'letter')::int,
		       COUNT(*) FILTER (WHERE content_type = 'number')::int,
		       COUNT(*) FILTER (WHERE content_type = 'animal')::int
		FROM progress_records
		WHERE child_id = $1 AND completed`, childID.String(),
	).Scan(&m.Letters, &m.Numbers, &m.Animals)
	if err != nil {
		return m, fmt.Errorf("failed to count completed progress: %w", err)
	}
	return m, nil
}

// Leaderboard sums stars per child. A non-positive limit returns every child.
func (r *ProgressRepository) Leaderboard(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT child_id, SUM(stars_earned)::int AS total
		FROM progress_records
		GROUP BY child_id
		ORDER BY total DESC, child_id
		LIMIT NULLIF($1, 0)`, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []progress.LeaderboardEntry
	for rows.Next() {
		var (
			id    string
			total int
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, progress.LeaderboardEntry{ChildID: shared.ChildID(id), TotalStars: total})
	}
	return entries, rows.Err()
}

func collectRecords(rows pgx.Rows) ([]*progress.Record, error) {
	defer rows.Close()

	var out []*progress.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*progress.Record, error) {
	var (
		rec                             progress.Record
		id, childID, content, activity string
	)

	err := row.Scan(
		&id,
		&childID,
		&content,
		&rec.ContentID,
		&activity,
		&rec.Attempts,
		&rec.Completed,
		&rec.BestScore,
		&rec.StarsEarned,
		&rec.TimeSpentSeconds,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ID = id
	rec.ChildID = shared.ChildID(childID)
	rec.ContentType = shared.ContentType(content)
	rec.ActivityType = shared.ActivityType(activity)
	return &rec, nil
}

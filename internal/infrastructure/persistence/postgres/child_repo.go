package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHILD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const childColumns = `
	id, name, nickname, total_stars, level, streak, last_active_date,
	total_lessons_completed, favorite_module, created_at, updated_at`

// ChildRepository implements child.Repository for PostgreSQL.
type ChildRepository struct {
	conn *Connection
}

// NewChildRepository creates a new ChildRepository.
func NewChildRepository(conn *Connection) *ChildRepository {
	return &ChildRepository{conn: conn}
}

// Create inserts a new child profile.
func (r *ChildRepository) Create(ctx context.Context, c *child.Child) error {
	query := `
		INSERT INTO children (
			id, name, nickname, total_stars, level, streak, last_active_date,
			total_lessons_completed, favorite_module, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID.String(),
		c.Name,
		c.Nickname,
		c.TotalStars,
		c.Level,
		c.Streak,
		dateOnly(c.LastActiveDate),
		c.TotalLessonsCompleted,
		favoriteToNull(c.FavoriteModule),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("child", "Create", shared.ErrAlreadyExists, "child already exists")
		}
		return fmt.Errorf("failed to create child: %w", err)
	}

	return nil
}

// GetByID returns a child profile by ID.
func (r *ChildRepository) GetByID(ctx context.Context, id shared.ChildID) (*child.Child, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+childColumns+` FROM children WHERE id = $1`, id.String())
	c, err := scanChild(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChildNotFound
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return c, nil
}

// Delete removes a child; progress and daily rows cascade.
func (r *ChildRepository) Delete(ctx context.Context, id shared.ChildID) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM children WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrChildNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanChild(row pgx.Row) (*child.Child, error) {
	var (
		c          child.Child
		id         string
		lastActive *time.Time
		favorite   *string
	)

	err := row.Scan(
		&id,
		&c.Name,
		&c.Nickname,
		&c.TotalStars,
		&c.Level,
		&c.Streak,
		&lastActive,
		&c.TotalLessonsCompleted,
		&favorite,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = shared.ChildID(id)
	if lastActive != nil {
		d := timeutil.AsDate(*lastActive)
		c.LastActiveDate = &d
	}
	if favorite != nil {
		ct := shared.ContentType(*favorite)
		c.FavoriteModule = &ct
	}
	return &c, nil
}

func favoriteToNull(ct *shared.ContentType) *string {
	if ct == nil {
		return nil
	}
	s := ct.String()
	return &s
}

// dateOnly strips the zone so pgx encodes the intended calendar date.
func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

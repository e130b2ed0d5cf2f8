package activity

import (
	"context"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// Repository is the read side of daily aggregates. Writes happen only
// through progress.AttemptStore so they share the attempt's transaction.
type Repository interface {
	// ListRange returns the child's aggregates with from <= date <= to,
	// ordered by date ascending.
	ListRange(ctx context.Context, childID shared.ChildID, from, to time.Time) ([]*Daily, error)

	// CountDays returns how many daily rows the child has.
	CountDays(ctx context.Context, childID shared.ChildID) (int, error)
}

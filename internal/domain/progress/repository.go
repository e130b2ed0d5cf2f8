package progress

import (
	"context"
	"errors"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// AttemptStore applies one attempt as a single atomic unit per child.
//
// RecordAttempt serializes writers for key.ChildID, loads the child, the
// record for key (zeroed when absent) and the child's cumulative module
// counters, then calls fn. When fn returns nil the record, the child and
// state.Daily are persisted together; on any error nothing is written.
// Returns shared.ErrChildNotFound before calling fn if the child is unknown.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, key Key, fn func(state *AttemptState) error) error
}

// LeaderboardEntry is one row of the star leaderboard.
type LeaderboardEntry struct {
	ChildID    shared.ChildID `json:"childId"`
	TotalStars int            `json:"totalStars"`
}

// Repository is the read side of the progress ledger.
type Repository interface {
	// ListByChild returns all the child's records, most recently updated first.
	ListByChild(ctx context.Context, childID shared.ChildID) ([]*Record, error)

	// ListByContentType returns the child's records for ct ordered by content ID.
	ListByContentType(ctx context.Context, childID shared.ChildID, ct shared.ContentType) ([]*Record, error)

	// CountCompleted returns the number of completed records per module.
	CountCompleted(ctx context.Context, childID shared.ChildID) (child.ModuleCounts, error)

	// Leaderboard sums stars per child across records, highest first.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ErrLeaderboardNotLoaded is returned by LeaderboardCache.Top when the cache
// holds no complete board.
var ErrLeaderboardNotLoaded = errors.New("leaderboard cache not loaded")

// LeaderboardCache is a fast copy of Leaderboard kept current by star credits.
// Top fails when the cache does not hold a complete board; callers then read
// the Repository and Rebuild.
type LeaderboardCache interface {
	// SetTotal raises a child's cached total to total and never lowers it,
	// so replays and late deliveries are harmless. It reports false when no
	// board is loaded and nothing was written.
	SetTotal(ctx context.Context, childID shared.ChildID, total int) (bool, error)
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Rebuild(ctx context.Context, entries []LeaderboardEntry) error
	// Invalidate drops the board; the next read rebuilds it.
	Invalidate(ctx context.Context) error
}

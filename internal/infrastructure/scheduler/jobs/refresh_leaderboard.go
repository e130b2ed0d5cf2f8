// Package jobs contains the scheduled background jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardName is the scheduler name of RefreshLeaderboardJob.
const RefreshLeaderboardName = "refresh_leaderboard"

// RefreshLeaderboardJob reloads the leaderboard cache from the store so it
// never expires under a busy API and drifted increments get corrected.
type RefreshLeaderboardJob struct {
	store   progress.Repository
	cache   progress.LeaderboardCache
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	log     *logger.Logger
}

// NewRefreshLeaderboardJob creates the job. breaker should be the one the
// leaderboard query and the star credit handler share.
func NewRefreshLeaderboardJob(
	store progress.Repository,
	cache progress.LeaderboardCache,
	breaker *circuitbreaker.CircuitBreaker,
	log *logger.Logger,
) *RefreshLeaderboardJob {
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshLeaderboardJob{
		store:   store,
		cache:   cache,
		breaker: breaker,
		timeout: 30 * time.Second,
		log:     log.With(logger.Component(RefreshLeaderboardName)),
	}
}

// Name implements scheduler.Job.
func (j *RefreshLeaderboardJob) Name() string { return RefreshLeaderboardName }

// Run implements scheduler.Job. An open breaker skips the run.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	entries, err := j.store.Leaderboard(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to read leaderboard: %w", err)
	}

	err = j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.cache.Rebuild(ctx, entries)
	})
	if circuitbreaker.IsRejected(err) {
		j.log.Debug("leaderboard cache unavailable, refresh skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to rebuild leaderboard cache: %w", err)
	}

	j.log.Debug("leaderboard cache refreshed", logger.Int("entries", len(entries)))
	return nil
}

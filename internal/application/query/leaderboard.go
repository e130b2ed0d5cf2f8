package query

import (
	"context"
	"errors"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD
// Served from the cache when it holds a complete board. Misses and cache
// failures fall back to the ledger, which also reloads the cache.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntryDTO is one row of the leaderboard response.
type LeaderboardEntryDTO struct {
	Rank       int    `json:"rank"`
	ChildID    string `json:"childId"`
	TotalStars int    `json:"totalStars"`
}

// GetLeaderboardHandler handles the leaderboard query.
type GetLeaderboardHandler struct {
	progress progress.Repository
	cache    progress.LeaderboardCache
	breaker  *circuitbreaker.CircuitBreaker
	read     reader
	log      *logger.Logger
}

// NewGetLeaderboardHandler creates the handler.
func NewGetLeaderboardHandler(d Deps) *GetLeaderboardHandler {
	d = d.withDefaults()
	return &GetLeaderboardHandler{
		progress: d.Progress,
		cache:    d.Cache,
		breaker:  d.Breaker,
		read:     newReader(d.Retryable),
		log:      d.Logger.With(logger.Component("leaderboard")),
	}
}

// Handle returns the top entries. limit is clamped to [1, shared.MaxLimit]
// with shared.DefaultLimit for non-positive values.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, limit int) ([]LeaderboardEntryDTO, error) {
	limit = shared.ClampLimit(limit)

	if entries, ok := h.fromCache(ctx, limit); ok {
		return rank(entries), nil
	}

	all, err := readOne(ctx, h.read, func(ctx context.Context) ([]progress.LeaderboardEntry, error) {
		return h.progress.Leaderboard(ctx, 0)
	})
	if err != nil {
		return nil, err
	}

	h.reload(ctx, all)

	if len(all) > limit {
		all = all[:limit]
	}
	return rank(all), nil
}

func (h *GetLeaderboardHandler) fromCache(ctx context.Context, limit int) ([]progress.LeaderboardEntry, bool) {
	if h.cache == nil {
		return nil, false
	}

	var (
		entries []progress.LeaderboardEntry
		missed  bool
	)
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		entries, err = h.cache.Top(ctx, limit)
		if errors.Is(err, progress.ErrLeaderboardNotLoaded) {
			missed = true
			return nil
		}
		return err
	})

	switch {
	case err != nil && !circuitbreaker.IsRejected(err):
		h.log.Warn("leaderboard cache read failed", logger.Err(err))
		return nil, false
	case err != nil, missed:
		return nil, false
	}
	return entries, true
}

func (h *GetLeaderboardHandler) reload(ctx context.Context, all []progress.LeaderboardEntry) {
	if h.cache == nil {
		return
	}

	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.Rebuild(ctx, all)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		h.log.Warn("failed to rebuild leaderboard cache", logger.Err(err))
	}
}

func rank(entries []progress.LeaderboardEntry) []LeaderboardEntryDTO {
	out := make([]LeaderboardEntryDTO, 0, len(entries))
	for i, e := range entries {
		out = append(out, LeaderboardEntryDTO{
			Rank:       i + 1,
			ChildID:    e.ChildID.String(),
			TotalStars: e.TotalStars,
		})
	}
	return out
}

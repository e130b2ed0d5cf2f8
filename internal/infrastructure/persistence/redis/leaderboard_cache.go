package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STARS LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// StarsLeaderboard keeps Σ stars per child in a Redis sorted set.
//
// Layout:
//   - Sorted set "leaderboard:stars" stores childID -> -totalStars
//   - String "leaderboard:stars:loaded" marks a complete set and carries the TTL
//
// Scores are negated so that ZRANGE returns total desc, child id asc, which is
// the same order the database query uses. Credits write the child's committed
// total, not a delta, and only while the set is loaded; otherwise the next
// read rebuilds it from the database.
type StarsLeaderboard struct {
	cache *Cache
	ttl   time.Duration
}

var (
	keyStars       = LeaderboardKey("stars")
	keyStarsLoaded = LeaderboardKey("stars:loaded")
)

// raiseIfLoaded sets member ARGV[2] to score ARGV[1] when KEYS[2] exists and
// the stored score is absent or larger. Scores are negated totals, so a
// smaller score is a larger total.
var raiseIfLoaded = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
	return false
end
local current = redis.call('ZSCORE', KEYS[1], ARGV[2])
if not current or tonumber(current) > tonumber(ARGV[1]) then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
end
return 1
`)

// NewStarsLeaderboard creates a leaderboard on top of cache.
func NewStarsLeaderboard(cache *Cache) *StarsLeaderboard {
	ttl := cache.Config().LeaderboardTTL
	if ttl <= 0 {
		ttl = TTLLeaderboard
	}
	return &StarsLeaderboard{cache: cache, ttl: ttl}
}

// SetTotal raises a child's total to total. Star balances only grow, so the
// larger of the cached and the reported value is always the newer one. It
// reports false when the set is not loaded and the write was skipped.
func (l *StarsLeaderboard) SetTotal(ctx context.Context, childID shared.ChildID, total int) (bool, error) {
	if childID == "" {
		return false, ErrCacheKeyEmpty
	}

	err := raiseIfLoaded.Run(ctx, l.cache.Client(),
		[]string{keyStars, keyStarsLoaded}, -total, childID.String()).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to update leaderboard: %w", err)
	}
	return true, nil
}

// Top returns the first limit entries. A non-positive limit returns all.
// Returns ErrCacheMiss, matching progress.ErrLeaderboardNotLoaded, when the
// set has not been loaded.
func (l *StarsLeaderboard) Top(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	pipe := l.cache.Client().Pipeline()
	loaded := pipe.Exists(ctx, keyStarsLoaded)
	members := pipe.ZRangeWithScores(ctx, keyStars, 0, stop)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	if loaded.Val() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrCacheMiss, progress.ErrLeaderboardNotLoaded)
	}

	entries := make([]progress.LeaderboardEntry, 0, len(members.Val()))
	for _, z := range members.Val() {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, progress.LeaderboardEntry{
			ChildID:    shared.ChildID(id),
			TotalStars: int(-z.Score),
		})
	}
	return entries, nil
}

// Rebuild replaces the set with entries and marks it loaded.
func (l *StarsLeaderboard) Rebuild(ctx context.Context, entries []progress.LeaderboardEntry) error {
	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, keyStars, keyStarsLoaded)

	if len(entries) > 0 {
		members := make([]redis.Z, 0, len(entries))
		for _, e := range entries {
			members = append(members, redis.Z{
				Score:  float64(-e.TotalStars),
				Member: e.ChildID.String(),
			})
		}
		pipe.ZAdd(ctx, keyStars, members...)
		pipe.Expire(ctx, keyStars, l.ttl)
	}
	pipe.Set(ctx, keyStarsLoaded, time.Now().UTC().Format(time.RFC3339), l.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}
	return nil
}

// Invalidate drops the set; the next read rebuilds it.
func (l *StarsLeaderboard) Invalidate(ctx context.Context) error {
	return l.cache.Delete(ctx, keyStars, keyStarsLoaded)
}

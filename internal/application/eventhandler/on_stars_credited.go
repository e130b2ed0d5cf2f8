// Package eventhandler contains subscribers for domain events raised by
// committed attempts.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STARS CREDITED
// Mirrors committed star balances into the leaderboard cache. The database is
// the source of truth: a write that fails drops the cached board, so the next
// read rebuilds it instead of serving a stale total.
// ═══════════════════════════════════════════════════════════════════════════

const invalidateTimeout = 2 * time.Second

// OnStarsCreditedHandler applies star credits to the leaderboard cache.
type OnStarsCreditedHandler struct {
	cache   progress.LeaderboardCache
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewOnStarsCreditedHandler creates the handler. breaker may be shared with
// the leaderboard query so both sides see the same cache health.
func NewOnStarsCreditedHandler(
	cache progress.LeaderboardCache,
	breaker *circuitbreaker.CircuitBreaker,
	log *logger.Logger,
) *OnStarsCreditedHandler {
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OnStarsCreditedHandler{
		cache:   cache,
		breaker: breaker,
		retrier: retry.CacheRetrier(),
		log:     log.With(logger.Component("on_stars_credited")),
	}
}

// Handle implements shared.EventHandler. The event's NewTotal is written as
// is, which makes a retried or repeated delivery a no-op.
func (h *OnStarsCreditedHandler) Handle(ctx context.Context, event shared.Event) error {
	credited, ok := event.(shared.StarsCreditedEvent)
	if !ok {
		return nil
	}
	childID := shared.ChildID(credited.AggregateID())

	var applied bool
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			applied, err = h.cache.SetTotal(ctx, childID, credited.NewTotal)
			return err
		})
	})

	switch {
	case circuitbreaker.IsRejected(err):
		return nil
	case err != nil:
		// The handler context may be the one that just expired.
		invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
		defer cancel()
		if invErr := h.cache.Invalidate(invCtx); invErr != nil {
			h.log.Warn("failed to invalidate leaderboard cache",
				logger.ChildID(childID.String()),
				logger.Err(invErr),
			)
		}
		return fmt.Errorf("failed to update leaderboard cache: %w", err)
	}

	if !applied {
		h.log.Debug("leaderboard not loaded, update skipped",
			logger.ChildID(childID.String()),
			logger.Stars(credited.NewTotal),
		)
	}
	return nil
}

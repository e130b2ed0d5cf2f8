package main

import (
	"context"
	"fmt"

	"github.com/kidlearn/stars-hub/config"
	"github.com/kidlearn/stars-hub/internal/application/query"
	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/memory"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/postgres"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/redis"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app holds the stores every command works against.
type app struct {
	cfg *config.Config
	log *logger.Logger

	children child.Repository
	progress progress.Repository
	activity activity.Repository
	attempts progress.AttemptStore

	// db is nil on the memory store.
	db *postgres.Connection

	// cache and leaderboard are nil when the leaderboard cache is off or
	// Redis was unreachable at startup.
	cache        *redis.Cache
	leaderboard  *redis.StarsLeaderboard
	cacheBreaker *circuitbreaker.CircuitBreaker

	closers []func()
}

// openApp connects the configured store and, with withCache, the Redis
// leaderboard.
func openApp(ctx context.Context, cfg *config.Config, log *logger.Logger, withCache bool) (*app, error) {
	timeutil.SetZone(cfg.Gamification.Location)

	a := &app{cfg: cfg, log: log}

	switch cfg.App.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on exit")
		store := memory.NewStore()
		a.children, a.progress, a.activity, a.attempts = store, store, store, store

	default:
		log.Info("connecting to database...")
		dbCfg := postgres.DefaultConfig()
		dbCfg.URL = cfg.Database.DSN()
		dbCfg.MaxConns = int32(cfg.Database.MaxConns)
		dbCfg.MinConns = int32(cfg.Database.MinConns)
		dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		dbCfg.ConnectTimeout = cfg.Database.ConnectTimeout

		conn, err := postgres.NewConnection(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = conn
		a.closers = append(a.closers, func() {
			log.Info("closing database connection...")
			conn.Close()
		})
		log.Info("database connection established")

		a.children = postgres.NewChildRepository(conn)
		a.progress = postgres.NewProgressRepository(conn)
		a.activity = postgres.NewActivityRepository(conn)
		a.attempts = postgres.NewAttemptStore(conn)
	}

	if withCache && cfg.CacheEnabled() {
		a.openCache(ctx)
	}
	return a, nil
}

// openCache connects Redis. The leaderboard degrades to database reads when
// it is unreachable, so a failure here is not fatal.
func (a *app) openCache(ctx context.Context) {
	a.log.Info("connecting to Redis...")

	rc := redis.DefaultConfig()
	rc.Host = a.cfg.Redis.Host
	rc.Port = a.cfg.Redis.Port
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.PoolSize = a.cfg.Redis.PoolSize
	rc.MinIdleConns = a.cfg.Redis.MinIdleConns
	rc.DialTimeout = a.cfg.Redis.DialTimeout
	rc.ReadTimeout = a.cfg.Redis.ReadTimeout
	rc.WriteTimeout = a.cfg.Redis.WriteTimeout
	rc.LeaderboardTTL = a.cfg.Gamification.LeaderboardTTL

	cache, err := redis.NewCache(ctx, rc)
	if err != nil {
		a.log.Warn("failed to connect to Redis, leaderboard cache disabled", logger.Err(err))
		return
	}

	a.cache = cache
	a.leaderboard = redis.NewStarsLeaderboard(cache)
	a.cacheBreaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		a.log.Warn("circuit breaker state changed",
			logger.Component(name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	a.closers = append(a.closers, func() {
		a.log.Info("closing Redis connection...")
		_ = cache.Close()
	})
	a.log.Info("Redis connection established")
}

// queryDeps returns the read-side dependencies.
func (a *app) queryDeps() query.Deps {
	d := query.Deps{
		Children: a.children,
		Progress: a.progress,
		Activity: a.activity,
		Catalog: query.Catalog{
			Letters: a.cfg.Gamification.CatalogLetters,
			Numbers: a.cfg.Gamification.CatalogNumbers,
			Animals: a.cfg.Gamification.CatalogAnimals,
		},
		MonthlyTarget: a.cfg.Gamification.MonthlyTarget,
		Retryable:     retryable,
		Logger:        a.log,
	}
	if a.leaderboard != nil {
		d.Cache = a.leaderboard
		d.Breaker = a.cacheBreaker
	}
	return d
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func retryable(err error) bool {
	return shared.IsRetryable(err) || postgres.IsTransient(err)
}

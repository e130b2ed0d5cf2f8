//go:build integration

package redis_test

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/redis"
)

var testCache *redis.Cache

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not construct pool: %s", err)
	}
	pool.MaxWait = time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start redis: %s", err)
	}
	_ = resource.Expire(180)

	cfg := redis.DefaultConfig()
	cfg.Host = "localhost"
	cfg.Port, _ = strconv.Atoi(resource.GetPort("6379/tcp"))
	cfg.LeaderboardTTL = time.Minute

	err = pool.Retry(func() error {
		c, err := redis.NewCache(context.Background(), cfg)
		if err != nil {
			return err
		}
		testCache = c
		return nil
	})
	if err != nil {
		_ = pool.Purge(resource)
		log.Fatalf("could not connect to redis: %s", err)
	}

	code := m.Run()

	_ = testCache.Close()
	if err := pool.Purge(resource); err != nil {
		log.Printf("could not purge redis: %s", err)
	}
	os.Exit(code)
}

func TestStarsLeaderboard_Lifecycle(t *testing.T) {
	ctx := context.Background()
	lb := redis.NewStarsLeaderboard(testCache)
	require.NoError(t, lb.Invalidate(ctx))

	_, err := lb.Top(ctx, 10)
	assert.ErrorIs(t, err, progress.ErrLeaderboardNotLoaded)

	applied, err := lb.SetTotal(ctx, "kid-a", 3)
	require.NoError(t, err)
	assert.False(t, applied, "writes are skipped until the set is loaded")

	require.NoError(t, lb.Rebuild(ctx, []progress.LeaderboardEntry{
		{ChildID: "kid-a", TotalStars: 5},
		{ChildID: "kid-b", TotalStars: 5},
		{ChildID: "kid-c", TotalStars: 2},
	}))

	applied, err = lb.SetTotal(ctx, "kid-c", 6)
	require.NoError(t, err)
	assert.True(t, applied)

	// A replayed credit and a late, smaller total change nothing.
	_, err = lb.SetTotal(ctx, "kid-c", 6)
	require.NoError(t, err)
	_, err = lb.SetTotal(ctx, "kid-a", 4)
	require.NoError(t, err)
	_, err = lb.SetTotal(ctx, "kid-a", 1)
	require.NoError(t, err)

	top, err := lb.Top(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []progress.LeaderboardEntry{
		{ChildID: "kid-c", TotalStars: 6},
		{ChildID: "kid-a", TotalStars: 5},
		{ChildID: "kid-b", TotalStars: 5},
	}, top)

	top, err = lb.Top(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	ttl, err := testCache.TTL(ctx, redis.LeaderboardKey("stars"))
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, lb.Invalidate(ctx))
	_, err = lb.Top(ctx, 10)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestStarsLeaderboard_EmptyRebuildIsLoaded(t *testing.T) {
	ctx := context.Background()
	lb := redis.NewStarsLeaderboard(testCache)

	require.NoError(t, lb.Rebuild(ctx, nil))

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	applied, err := lb.SetTotal(ctx, "kid-new", 1)
	require.NoError(t, err)
	assert.True(t, applied)

	top, err = lb.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []progress.LeaderboardEntry{{ChildID: "kid-new", TotalStars: 1}}, top)
}

func TestCache_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Stars int    `json:"stars"`
	}
	require.NoError(t, testCache.Set(ctx, "it:payload", payload{Name: "Ayu", Stars: 4}, time.Minute))

	var got payload
	require.NoError(t, testCache.Get(ctx, "it:payload", &got))
	assert.Equal(t, payload{Name: "Ayu", Stars: 4}, got)

	require.NoError(t, testCache.Delete(ctx, "it:payload"))
	exists, err := testCache.Exists(ctx, "it:payload")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, testCache.Get(ctx, "it:payload", &got), redis.ErrCacheMiss)
}

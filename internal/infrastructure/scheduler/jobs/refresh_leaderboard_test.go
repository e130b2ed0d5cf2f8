package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/circuitbreaker"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) SetTotal(ctx context.Context, childID shared.ChildID, total int) (bool, error) {
	args := m.Called(ctx, childID, total)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Top(ctx context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]progress.LeaderboardEntry)
	return entries, args.Error(1)
}

func (m *mockCache) Rebuild(ctx context.Context, entries []progress.LeaderboardEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// stubStore serves a fixed leaderboard; other methods are not used.
type stubStore struct {
	progress.Repository
	entries []progress.LeaderboardEntry
	err     error
}

func (s stubStore) Leaderboard(context.Context, int) ([]progress.LeaderboardEntry, error) {
	return s.entries, s.err
}

func seededStore() stubStore {
	return stubStore{entries: []progress.LeaderboardEntry{
		{ChildID: "kid-a", TotalStars: 9},
		{ChildID: "kid-b", TotalStars: 4},
	}}
}

func TestRefreshLeaderboard_RebuildsFromStore(t *testing.T) {
	cache := &mockCache{}
	cache.On("Rebuild", mock.Anything, mock.MatchedBy(func(e []progress.LeaderboardEntry) bool {
		return len(e) == 2
	})).Return(nil).Once()

	job := NewRefreshLeaderboardJob(seededStore(), cache, nil, nil)
	assert.Equal(t, RefreshLeaderboardName, job.Name())
	require.NoError(t, job.Run(context.Background()))
	cache.AssertExpectations(t)
}

func TestRefreshLeaderboard_OpenBreakerSkips(t *testing.T) {
	cache := &mockCache{}
	cache.On("Rebuild", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1))
	job := NewRefreshLeaderboardJob(seededStore(), cache, breaker, nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to rebuild leaderboard cache")

	assert.NoError(t, job.Run(context.Background()))
	cache.AssertNumberOfCalls(t, "Rebuild", 1)
}

func TestRefreshLeaderboard_StoreError(t *testing.T) {
	cache := &mockCache{}
	job := NewRefreshLeaderboardJob(stubStore{err: shared.ErrServiceUnavailable}, cache, nil, nil)

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	cache.AssertNotCalled(t, "Rebuild", mock.Anything, mock.Anything)
}

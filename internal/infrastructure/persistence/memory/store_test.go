package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

var day = timeutil.Date(2024, time.December, 3)

func seed(t *testing.T, s *Store, id string) {
	t.Helper()
	c, err := child.NewChild(child.NewChildParams{ID: id, Name: id}, day)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), c))
}

func key(id string, contentID int) progress.Key {
	return progress.Key{
		ChildID:      shared.ChildID(id),
		ContentType:  shared.ContentAnimal,
		ContentID:    contentID,
		ActivityType: shared.ActivityLearn,
	}
}

func apply(score int) func(*progress.AttemptState) error {
	return func(st *progress.AttemptState) error {
		completed := true
		st.Apply(progress.Attempt{Completed: &completed, Score: &score}, day, child.DefaultLevels, day)
		return nil
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := NewStore()
	seed(t, s, "kid-1")

	c, err := child.NewChild(child.NewChildParams{ID: "kid-1", Name: "again"}, day)
	require.NoError(t, err)
	assert.True(t, shared.IsAlreadyExists(s.Create(context.Background(), c)))
}

func TestStore_RecordAttemptCommits(t *testing.T) {
	s := NewStore()
	seed(t, s, "kid-1")
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, key("kid-1", 3), apply(100)))
	require.NoError(t, s.RecordAttempt(ctx, key("kid-1", 3), apply(100)))

	records, err := s.ListByChild(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Attempts)
	assert.Equal(t, 3, records[0].StarsEarned)

	days, err := s.ListRange(ctx, "kid-1", day, day)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 2, days[0].LessonsCompleted)
	assert.Equal(t, 2, days[0].AnimalsLearned)

	kid, err := s.GetByID(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, kid.TotalStars)
}

func TestStore_RecordAttemptRollsBack(t *testing.T) {
	s := NewStore()
	seed(t, s, "kid-1")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RecordAttempt(ctx, key("kid-1", 1), func(st *progress.AttemptState) error {
		_ = apply(100)(st)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	records, err := s.ListByChild(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := s.CountDays(ctx, "kid-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	kid, err := s.GetByID(ctx, "kid-1")
	require.NoError(t, err)
	assert.Zero(t, kid.TotalStars)
}

func TestStore_RecordAttemptUnknownChild(t *testing.T) {
	called := false
	err := NewStore().RecordAttempt(context.Background(), key("ghost", 1), func(*progress.AttemptState) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrChildNotFound)
	assert.False(t, called)
}

func TestStore_DeleteCascades(t *testing.T) {
	s := NewStore()
	seed(t, s, "kid-1")
	seed(t, s, "kid-2")
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, key("kid-1", 1), apply(100)))
	require.NoError(t, s.RecordAttempt(ctx, key("kid-2", 1), apply(50)))
	require.NoError(t, s.Delete(ctx, "kid-1"))

	_, err := s.GetByID(ctx, "kid-1")
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(s.Delete(ctx, "kid-1")))

	board, err := s.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []progress.LeaderboardEntry{{ChildID: "kid-2", TotalStars: 1}}, board)
}

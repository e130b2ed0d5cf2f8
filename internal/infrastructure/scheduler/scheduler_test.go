package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func TestScheduler_RunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(Config{Tick: 5 * time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "count", fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_NoOverlap(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		runs    atomic.Int32
	)
	s := New(Config{Tick: time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "slow", fn: func(context.Context) error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(15 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, overlap.Load())
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	s := New(Config{Tick: time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "blocking", fn: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	<-started
	require.NoError(t, s.Stop())

	last, err := s.LastResult("blocking")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.ErrorIs(t, last.Error, context.Canceled)
}

func TestScheduler_RunNowAndResults(t *testing.T) {
	boom := errors.New("boom")
	s := New(Config{})

	var completed []JobResult
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r) })

	require.NoError(t, s.Register(funcJob{name: "fails", fn: func(context.Context) error { return boom }}, Every(time.Hour)))

	last, err := s.LastResult("fails")
	require.NoError(t, err)
	assert.Nil(t, last)

	res, err := s.RunNow(context.Background(), "fails")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, boom)
	require.Len(t, completed, 1)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
	assert.EqualValues(t, 1, jobs[0].RunCount)
	assert.EqualValues(t, 1, jobs[0].FailCount)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RegistrationErrors(t *testing.T) {
	s := New(Config{})
	job := funcJob{name: "a", fn: func(context.Context) error { return nil }}

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, Every(time.Second)))
	assert.ErrorIs(t, s.Register(job, Every(time.Second)), ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
}

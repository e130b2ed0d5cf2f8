package messaging

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

func credited(childID string, amount int) shared.StarsCreditedEvent {
	return shared.StarsCreditedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStarsCredited, childID, time.Now()),
		Amount:    amount,
	}
}

func levelUp(childID string) shared.LevelUpEvent {
	return shared.LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, childID, time.Now()),
		OldLevel:  1,
		NewLevel:  2,
	}
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(_ context.Context, e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), credited("kid-1", 2), nil, levelUp("kid-1")))

	assert.Equal(t, []shared.EventType{shared.EventStarsCredited}, typed)
	assert.Equal(t, []shared.EventType{shared.EventStarsCredited, shared.EventLevelUp}, all)
}

func TestInMemoryEventBus_HandlerErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelDebug, Format: logger.FormatJSON})
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: log})

	var second atomic.Bool
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(context.Context, shared.Event) error {
		return errors.New("redis down")
	}))
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(context.Context, shared.Event) error {
		second.Store(true)
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), credited("kid-1", 1)))

	assert.True(t, second.Load())
	assert.Contains(t, buf.String(), "event handler failed")
	assert.Contains(t, buf.String(), "redis down")
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var (
		mu    sync.Mutex
		total int
	)
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(_ context.Context, e shared.Event) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		total += e.(shared.StarsCreditedEvent).Amount
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), credited("kid-1", 2)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 40, total)
}

func TestInMemoryEventBus_AsyncHandlerGetsOwnContext(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, HandlerTimeout: time.Second})

	done := make(chan error, 1)
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, _ shared.Event) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, levelUp("kid-1")))
	cancel()
	require.NoError(t, bus.Close())

	assert.NoError(t, <-done)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), credited("kid-1", 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, NewInMemoryEventBus(DefaultInMemoryEventBusConfig()).Subscribe(shared.EventLevelUp, nil))
}

func TestInMemoryEventBus_RecoversHandlerPanic(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelDebug, Format: logger.FormatJSON})
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, Logger: log})
	defer bus.Close()

	var after atomic.Bool
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(context.Context, shared.Event) error {
		panic("nil map write")
	}))
	require.NoError(t, bus.Subscribe(shared.EventStarsCredited, func(context.Context, shared.Event) error {
		after.Store(true)
		return nil
	}))

	require.NotPanics(t, func() {
		require.NoError(t, bus.Publish(context.Background(), credited("kid-1", 1)))
	})
	assert.True(t, after.Load())
	assert.Contains(t, buf.String(), "event handler panicked")
	assert.Contains(t, buf.String(), "nil map write")
}

func TestInMemoryEventBus_AsyncRecoversHandlerPanic(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 1})

	var delivered atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		delivered.Add(1)
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), levelUp("kid-1")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(3), delivered.Load())
}

// Package messaging delivers domain events raised by committed attempts to
// in-process subscribers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

// ErrEventBusClosed is returned by Publish and Subscribe after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is an in-process implementation of shared.EventBus.
// In async mode handlers run on a bounded worker pool with their own context,
// so a slow subscriber never holds up the request that raised the event.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	closed      bool

	async          bool
	workers        chan struct{}
	handlerTimeout time.Duration
	wg             sync.WaitGroup
	log            *logger.Logger
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers in background goroutines.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent async handlers.
	WorkerPoolSize int

	// HandlerTimeout bounds each async handler call.
	HandlerTimeout time.Duration

	Logger *logger.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 8,
		HandlerTimeout: 5 * time.Second,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 5 * time.Second
	}

	return &InMemoryEventBus{
		handlers:       make(map[shared.EventType][]shared.EventHandler),
		async:          cfg.AsyncMode,
		workers:        make(chan struct{}, cfg.WorkerPoolSize),
		handlerTimeout: cfg.HandlerTimeout,
		log:            cfg.Logger.With(logger.Component("eventbus")),
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish delivers events in order. Handler errors are logged, never returned.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.Event) error {
	for _, event := range events {
		if event == nil {
			continue
		}

		b.mu.RLock()
		if b.closed {
			b.mu.RUnlock()
			return ErrEventBusClosed
		}
		handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
		handlers = append(handlers, b.handlers[event.EventType()]...)
		handlers = append(handlers, b.allHandlers...)
		if b.async {
			b.wg.Add(len(handlers))
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			if b.async {
				go b.runAsync(event, h)
				continue
			}
			if err := b.call(ctx, event, h); err != nil {
				b.logFailure(event, err, 0)
			}
		}
	}
	return nil
}

func (b *InMemoryEventBus) runAsync(event shared.Event, h shared.EventHandler) {
	defer b.wg.Done()

	b.workers <- struct{}{}
	defer func() { <-b.workers }()

	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
	defer cancel()

	start := time.Now()
	if err := b.call(ctx, event, h); err != nil {
		b.logFailure(event, err, time.Since(start))
	}
}

// call runs h and turns a panic into an error.
func (b *InMemoryEventBus) call(ctx context.Context, event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error("event handler panicked",
				logger.String("event_type", string(event.EventType())),
				logger.F("panic", p),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return h(ctx, event)
}

func (b *InMemoryEventBus) logFailure(event shared.Event, err error, took time.Duration) {
	b.log.Warn("event handler failed",
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Latency(took),
		logger.Err(err),
	)
}

// Close stops accepting events and waits for running handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

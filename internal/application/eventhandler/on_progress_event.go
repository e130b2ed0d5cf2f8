package eventhandler

import (
	"context"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

// OnProgressEventHandler writes every gamification event to the log so
// level-ups and streak changes can be traced per child.
type OnProgressEventHandler struct {
	log *logger.Logger
}

// NewOnProgressEventHandler creates the handler.
func NewOnProgressEventHandler(log *logger.Logger) *OnProgressEventHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnProgressEventHandler{log: log.With(logger.Component("progress_events"))}
}

// Handle implements shared.EventHandler.
func (h *OnProgressEventHandler) Handle(_ context.Context, event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.ChildID(event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		fields = append(fields, logger.Any(k, v))
	}

	switch event.EventType() {
	case shared.EventLevelUp, shared.EventStreakReset:
		h.log.Info("progress milestone", fields...)
	default:
		h.log.Debug("progress event", fields...)
	}
	return nil
}

// Register subscribes the progress handlers to bus.
func Register(bus shared.EventBus, stars *OnStarsCreditedHandler, events *OnProgressEventHandler) error {
	if stars != nil {
		if err := bus.Subscribe(shared.EventStarsCredited, stars.Handle); err != nil {
			return err
		}
	}
	if events != nil {
		if err := bus.SubscribeAll(events.Handle); err != nil {
			return err
		}
	}
	return nil
}

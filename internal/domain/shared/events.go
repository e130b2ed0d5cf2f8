package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Gamification events raised by the child aggregate while an attempt is applied.
const (
	EventStarsCredited   EventType = "progress.stars_credited"
	EventLevelUp         EventType = "progress.level_up"
	EventStreakStarted   EventType = "progress.streak_started"
	EventStreakExtended  EventType = "progress.streak_extended"
	EventStreakReset     EventType = "progress.streak_reset"
	EventFavoriteChanged EventType = "progress.favorite_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for logging.
	Payload() map[string]any
}

// EventHandler reacts to a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes events after the change that raised them commits.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// EventBus is an EventPublisher that handlers can subscribe to.
type EventBus interface {
	EventPublisher
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// StarsCreditedEvent is raised when a child's star balance grows.
type StarsCreditedEvent struct {
	BaseEvent
	Amount   int `json:"amount"`
	NewTotal int `json:"new_total"`
}

// Payload implements Event interface.
func (e StarsCreditedEvent) Payload() map[string]any {
	return map[string]any{"amount": e.Amount, "new_total": e.NewTotal}
}

// LevelUpEvent is raised when the derived level changes.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]any {
	return map[string]any{"old_level": e.OldLevel, "new_level": e.NewLevel, "title": e.Title}
}

// StreakChangedEvent covers start, extension and reset; Type tells them apart.
type StreakChangedEvent struct {
	BaseEvent
	Previous int `json:"previous"`
	Current  int `json:"current"`
}

// Payload implements Event interface.
func (e StreakChangedEvent) Payload() map[string]any {
	return map[string]any{"previous": e.Previous, "current": e.Current}
}

// FavoriteChangedEvent is raised when the favorite module switches.
type FavoriteChangedEvent struct {
	BaseEvent
	Favorite string `json:"favorite"`
}

// Payload implements Event interface.
func (e FavoriteChangedEvent) Payload() map[string]any {
	return map[string]any{"favorite": e.Favorite}
}

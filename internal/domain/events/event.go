package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event interface {
	ID() uuid.UUID
	AggregateID() string
	AggregateType() string
	EventType() string
	Version() int
	CreatedAt() time.Time
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	id            uuid.UUID
	aggregateID   string
	aggregateType string
	eventType     string
	version       int
	createdAt     time.Time
}

// NewBaseEvent creates a new base event
func NewBaseEvent(aggregateID, aggregateType, eventType string, version int) BaseEvent {
	return BaseEvent{
		id:            uuid.New(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		eventType:     eventType,
		version:       version,
		createdAt:     time.Now().UTC(),
	}
}

// ID returns the event ID
func (e BaseEvent) ID() uuid.UUID {
	return e.id
}

// AggregateID returns the aggregate ID
func (e BaseEvent) AggregateID() string {
	return e.aggregateID
}

// AggregateType returns the aggregate type
func (e BaseEvent) AggregateType() string {
	return e.aggregateType
}

// EventType returns the event type
func (e BaseEvent) EventType() string {
	return e.eventType
}

// Version returns the event version
func (e BaseEvent) Version() int {
	return e.version
}

// CreatedAt returns the event creation time
func (e BaseEvent) CreatedAt() time.Time {
	return e.createdAt
}

// EventPublisher defines the interface for event publishing. Publishing is
// best-effort: callers log failures and carry on.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// Envelope wraps an event with metadata for transport
type Envelope struct {
	ID            string    `json:"id"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	OccurredAt    time.Time `json:"occurred_at"`
	Data          Event     `json:"data"`
}

// NewEnvelope wraps an event for transport
func NewEnvelope(event Event) Envelope {
	return Envelope{
		ID:            event.ID().String(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		EventVersion:  event.Version(),
		OccurredAt:    event.CreatedAt(),
		Data:          event,
	}
}

// Subject returns the routing key for an event, e.g. "download.DownloadCompleted"
func Subject(event Event) string {
	switch event.AggregateType() {
	case "Download":
		return "download." + event.EventType()
	case "Show":
		return "catalog." + event.EventType()
	default:
		return event.AggregateType() + "." + event.EventType()
	}
}

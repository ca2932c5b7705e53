package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventEntrySaved      EventType = "entry_saved"
	EventEntryConflict   EventType = "entry_conflict"
	EventStatusChanged   EventType = "status_changed"
	EventImageUsed       EventType = "image_used"
	EventImageReleased   EventType = "image_released"
	EventPublishComplete EventType = "publish_complete"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus. Subscription is explicit:
// Subscribe hands back a disposer and nothing listens ambiently.
type EventService interface {
	// Subscribe registers a handler for an event type. The returned disposer
	// removes exactly this registration; calling it twice is harmless.
	Subscribe(eventType EventType, handler EventHandler) (func(), error)

	// Publish sends an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}

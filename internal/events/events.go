package events

import (
	"context"
	"time"
)

// Buffer lifecycle event names.
const (
	EventFilled  = "filled"
	EventCleared = "cleared"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishBufferEvent(ctx context.Context, payload BufferEvent) error
}

// BufferEvent is emitted when the replay buffer changes phase.
type BufferEvent struct {
	Event      string    `json:"event"`
	Len        int       `json:"len"`
	Capacity   int       `json:"capacity"`
	Cleared    int       `json:"cleared,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NoopPublisher drops every event; useful for tests.
type NoopPublisher struct{}

// PublishBufferEvent satisfies Publisher.
func (NoopPublisher) PublishBufferEvent(context.Context, BufferEvent) error { return nil }

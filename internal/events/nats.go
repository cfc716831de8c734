package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("replay-buffer"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", natsURL, err)
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Close drains pending messages and closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to drain nats connection")
		n.conn.Close()
	}
}

// PublishBufferEvent publishes buffer lifecycle events to <subject>.<event>
func (n *NATSPublisher) PublishBufferEvent(ctx context.Context, event BufferEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := Subject(n.subject, event.Event)
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish buffer event")
		return err
	}

	n.logger.Debug().
		Str("event", event.Event).
		Int("len", event.Len).
		Str("subject", subject).
		Msg("Published buffer event")

	return nil
}

// Subject builds the routing subject for an event.
func Subject(base, event string) string {
	if base == "" {
		return event
	}
	return base + "." + event
}

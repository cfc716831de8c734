package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "replay.filled", Subject("replay", EventFilled))
	assert.Equal(t, "cleared", Subject("", EventCleared))
}

func TestBufferEventJSON(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := json.Marshal(BufferEvent{Event: EventFilled, Len: 3, Capacity: 3, OccurredAt: at})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"filled","len":3,"capacity":3,"occurred_at":"2024-01-02T03:04:05Z"}`, string(data))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishBufferEvent(context.Background(), BufferEvent{Event: EventCleared}))
}

package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestCollector(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.New(&buf).Level(zerolog.DebugLevel))

	c.TransitionsPushed(2, 5, 10)
	c.SampleServed(4, 5, time.Millisecond)
	c.SampleRejected(8, 5)
	c.BufferCleared(5)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)

	assert.Equal(t, "transitions_pushed", entries[0]["metric"])
	assert.Equal(t, float64(5), entries[0]["len"])
	assert.Equal(t, "sample_served", entries[1]["metric"])
	assert.Equal(t, "sample_rejected", entries[2]["metric"])
	assert.Equal(t, "warn", entries[2]["level"])
	assert.Equal(t, "buffer_cleared", entries[3]["metric"])
	assert.Equal(t, float64(5), entries[3]["cleared"])
}

func TestCollectorRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.New(&buf).Level(zerolog.InfoLevel))

	c.TransitionsPushed(1, 1, 1)
	c.SampleServed(1, 1, time.Millisecond)
	assert.Zero(t, buf.Len())

	c.BufferCleared(1)
	assert.NotZero(t, buf.Len())
}

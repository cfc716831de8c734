package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/replaybuffer/internal/events"
	replayhttp "github.com/cartridge/replaybuffer/internal/http"
	"github.com/cartridge/replaybuffer/internal/service"
	"github.com/cartridge/replaybuffer/pkg/buffer"
)

func newTestClient(t *testing.T, capacity int, opts ...Option) *Client {
	t.Helper()
	buf, err := buffer.NewCircular[json.RawMessage, json.RawMessage](capacity)
	require.NoError(t, err)
	logger := zerolog.Nop()
	svc := service.NewReplayService(buf, events.NoopPublisher{}, logger)

	srv := httptest.NewServer(replayhttp.NewServer(svc, logger).Routes())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, 5*time.Second, opts...)
	require.NoError(t, err)
	return c
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t, 3)
	ctx := context.Background()

	stats, err := c.Push(ctx, service.Transition{State: raw(`[0,0]`), Action: raw(`"left"`), NextState: raw(`[0,1]`), Reward: 1})
	require.NoError(t, err)
	assert.Equal(t, service.Stats{Len: 1, Capacity: 3}, stats)

	stats, err = c.PushBatch(ctx, []service.Transition{
		{State: raw(`[0,1]`), Action: raw(`"up"`), NextState: raw(`[1,1]`), Reward: 0},
		{State: raw(`[1,1]`), Action: raw(`"right"`), NextState: raw(`[1,2]`), Reward: -1},
		{State: raw(`[1,2]`), Action: raw(`"down"`), NextState: raw(`[0,2]`), Reward: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, service.Stats{Len: 3, Capacity: 3, Full: true}, stats)

	result, err := c.Sample(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalAvailable)

	actions := make([]string, 0, len(result.Transitions))
	for _, tr := range result.Transitions {
		actions = append(actions, string(tr.Action))
	}
	assert.ElementsMatch(t, []string{`"up"`, `"right"`, `"down"`}, actions)

	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Len)

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cleared.ClearedCount)
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(t, 2)
	ctx := context.Background()

	_, err := c.Sample(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, buffer.ErrInsufficientSamples)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "insufficient samples")

	_, err = c.Sample(ctx, -3)
	assert.ErrorIs(t, err, buffer.ErrInvalidBatchSize)
	assert.NotErrorIs(t, err, buffer.ErrInsufficientSamples)
}

func TestClientSendsCorrelationID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Correlation-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"len":0,"capacity":1,"full":false}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", time.Second, WithCorrelationID("trace-7"))
	require.NoError(t, err)

	_, err = c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trace-7", seen)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("localhost", time.Second)
	assert.Error(t, err)

	_, err = New("://bad", time.Second)
	assert.Error(t, err)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Stats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

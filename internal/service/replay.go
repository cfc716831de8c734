package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/replaybuffer/internal/events"
	"github.com/cartridge/replaybuffer/internal/metrics"
	"github.com/cartridge/replaybuffer/pkg/buffer"
)

// Transition is the wire form of a replay transition. State and action
// payloads are kept as raw JSON so the service never interprets them.
type Transition = buffer.Transition[json.RawMessage, json.RawMessage]

// Stats describes the current buffer occupancy
type Stats struct {
	Len      int  `json:"len"`
	Capacity int  `json:"capacity"`
	Full     bool `json:"full"`
}

// SampleResult holds a sampled minibatch
type SampleResult struct {
	Transitions    []Transition `json:"transitions"`
	TotalAvailable int          `json:"total_available"`
}

// ClearResult reports how many transitions a clear discarded
type ClearResult struct {
	ClearedCount int `json:"cleared_count"`
}

// ReplayService shares a single replay buffer between concurrent callers
type ReplayService struct {
	mu        sync.Mutex
	buffer    buffer.Replayer[json.RawMessage, json.RawMessage]
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReplayService creates a new ReplayService
func NewReplayService(buf buffer.Replayer[json.RawMessage, json.RawMessage], publisher events.Publisher, logger zerolog.Logger) *ReplayService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ReplayService{
		buffer:    buf,
		publisher: publisher,
		metrics:   metrics.NewCollector(logger),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Push stores a single transition
func (s *ReplayService) Push(ctx context.Context, transition Transition) (Stats, error) {
	return s.PushBatch(ctx, []Transition{transition})
}

// PushBatch stores transitions in the given order
func (s *ReplayService) PushBatch(ctx context.Context, transitions []Transition) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	wasFull := s.buffer.Full()
	s.buffer.PushBatch(transitions)
	stats := s.statsLocked()
	s.mu.Unlock()

	s.metrics.TransitionsPushed(len(transitions), stats.Len, stats.Capacity)

	if !wasFull && stats.Full {
		s.logger.Info().Int("capacity", stats.Capacity).Msg("Replay buffer reached capacity")
		s.publish(ctx, events.BufferEvent{
			Event:    events.EventFilled,
			Len:      stats.Len,
			Capacity: stats.Capacity,
		})
	}

	return stats, nil
}

// Sample draws batchSize distinct transitions uniformly at random
func (s *ReplayService) Sample(ctx context.Context, batchSize int) (*SampleResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	s.mu.Lock()
	available := s.buffer.Len()
	sampled, err := s.buffer.Sample(batchSize)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, buffer.ErrInsufficientSamples) {
			s.metrics.SampleRejected(batchSize, available)
		}
		return nil, err
	}

	s.metrics.SampleServed(batchSize, available, time.Since(start))

	return &SampleResult{
		Transitions:    sampled,
		TotalAvailable: available,
	}, nil
}

// Stats returns the current buffer statistics
func (s *ReplayService) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Clear discards every stored transition
func (s *ReplayService) Clear(ctx context.Context) (ClearResult, error) {
	if err := ctx.Err(); err != nil {
		return ClearResult{}, err
	}

	s.mu.Lock()
	cleared := s.buffer.Len()
	s.buffer.Clear()
	capacity := s.buffer.Capacity()
	s.mu.Unlock()

	s.metrics.BufferCleared(cleared)
	s.publish(ctx, events.BufferEvent{
		Event:    events.EventCleared,
		Capacity: capacity,
		Cleared:  cleared,
	})

	return ClearResult{ClearedCount: cleared}, nil
}

func (s *ReplayService) statsLocked() Stats {
	return Stats{
		Len:      s.buffer.Len(),
		Capacity: s.buffer.Capacity(),
		Full:     s.buffer.Full(),
	}
}

func (s *ReplayService) publish(ctx context.Context, event events.BufferEvent) {
	event.OccurredAt = s.now()
	if err := s.publisher.PublishBufferEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("event", event.Event).Msg("Failed to publish buffer event")
	}
}

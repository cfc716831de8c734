package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Collector records replay buffer metrics as structured log events
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track transitions accepted by the buffer
func (c *Collector) TransitionsPushed(count, length, capacity int) {
	c.logger.Debug().
		Str("metric", "transitions_pushed").
		Int("count", count).
		Int("len", length).
		Int("capacity", capacity).
		Msg("Transitions pushed metric")
}

// Track served samples
func (c *Collector) SampleServed(batchSize, available int, duration time.Duration) {
	c.logger.Debug().
		Str("metric", "sample_served").
		Int("batch_size", batchSize).
		Int("available", available).
		Dur("duration", duration).
		Msg("Sample served metric")
}

// Track samples refused because the request exceeded the stored population
func (c *Collector) SampleRejected(batchSize, available int) {
	c.logger.Warn().
		Str("metric", "sample_rejected").
		Int("batch_size", batchSize).
		Int("available", available).
		Msg("Sample rejected metric")
}

// Track buffer clears
func (c *Collector) BufferCleared(cleared int) {
	c.logger.Info().
		Str("metric", "buffer_cleared").
		Int("cleared", cleared).
		Msg("Buffer cleared metric")
}

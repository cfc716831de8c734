package buffer

import (
	"fmt"
	"math/rand/v2"
)

// Circular is a replay buffer that overwrites its oldest transition once
// capacity is reached and samples uniformly without replacement.
//
// Circular is not safe for concurrent use. Callers sharing a buffer between
// goroutines must synchronize access themselves.
type Circular[S, A any] struct {
	capacity int
	memory   []Transition[S, A]
	position int // next slot to write
	rng      *rand.Rand
}

// Option configures a Circular buffer.
type Option func(*options)

type options struct {
	rng *rand.Rand
}

// WithRand sets the random source used for sampling.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// WithSeed seeds the sampling source so draws are reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewCircular creates an empty buffer holding at most capacity transitions.
func NewCircular[S, A any](capacity int, opts ...Option) (*Circular[S, A], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Circular[S, A]{
		capacity: capacity,
		memory:   make([]Transition[S, A], 0, capacity),
		rng:      o.rng,
	}, nil
}

// Push implements Replayer.Push
func (c *Circular[S, A]) Push(state S, action A, nextState S, reward float64) {
	c.insert(Transition[S, A]{
		State:     state,
		Action:    action,
		NextState: nextState,
		Reward:    reward,
	})
}

// PushBatch implements Replayer.PushBatch
func (c *Circular[S, A]) PushBatch(transitions []Transition[S, A]) {
	for _, t := range transitions {
		c.insert(t)
	}
}

// Sample implements Replayer.Sample. The returned slice is freshly allocated
// and its order is random.
func (c *Circular[S, A]) Sample(batchSize int) ([]Transition[S, A], error) {
	if batchSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	n := len(c.memory)
	if batchSize > n {
		return nil, fmt.Errorf("%w: requested %d, have %d", ErrInsufficientSamples, batchSize, n)
	}

	// Partial Fisher-Yates over a scratch index slice; storage is left untouched.
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < batchSize; i++ {
		j := i + c.rng.IntN(n-i)
		indices[i], indices[j] = indices[j], indices[i]
	}

	sampled := make([]Transition[S, A], batchSize)
	for i := range sampled {
		sampled[i] = c.memory[indices[i]]
	}

	return sampled, nil
}

// Len implements Replayer.Len
func (c *Circular[S, A]) Len() int {
	return len(c.memory)
}

// Capacity implements Replayer.Capacity
func (c *Circular[S, A]) Capacity() int {
	return c.capacity
}

// Full implements Replayer.Full
func (c *Circular[S, A]) Full() bool {
	return len(c.memory) == c.capacity
}

// Clear implements Replayer.Clear
func (c *Circular[S, A]) Clear() {
	clear(c.memory)
	c.memory = c.memory[:0]
	c.position = 0
}

func (c *Circular[S, A]) insert(t Transition[S, A]) {
	if len(c.memory) < c.capacity {
		c.memory = append(c.memory, t)
	} else {
		c.memory[c.position] = t
	}
	c.position = (c.position + 1) % c.capacity
}

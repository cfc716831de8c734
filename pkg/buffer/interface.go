// Package buffer provides fixed-capacity experience replay buffers for
// reinforcement learning training loops.
package buffer

import "errors"

var (
	// ErrInvalidCapacity indicates a buffer was constructed with a non-positive capacity.
	ErrInvalidCapacity = errors.New("capacity must be positive")
	// ErrInsufficientSamples indicates a sample larger than the stored population was requested.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrInvalidBatchSize indicates a negative sample size was requested.
	ErrInvalidBatchSize = errors.New("batch size must not be negative")
)

// Transition represents a single step of interaction with an environment.
// The buffer stores the state and action values without inspecting them.
type Transition[S, A any] struct {
	State     S       `json:"state"`
	Action    A       `json:"action"`
	NextState S       `json:"next_state"`
	Reward    float64 `json:"reward"`
}

// Replayer defines the behaviour shared by replay buffer variants
type Replayer[S, A any] interface {
	// Push stores a single transition built from its fields
	Push(state S, action A, nextState S, reward float64)

	// PushBatch stores transitions in order, as if pushed one at a time
	PushBatch(transitions []Transition[S, A])

	// Sample draws batchSize distinct stored transitions
	Sample(batchSize int) ([]Transition[S, A], error)

	// Len reports the number of stored transitions
	Len() int

	// Capacity reports the maximum number of transitions retained
	Capacity() int

	// Full reports whether new pushes overwrite existing transitions
	Full() bool

	// Clear discards all stored transitions
	Clear()
}

package ai

import (
	"context"
	"errors"
	"sync"
)

// ErrNoInitializer is returned when a handle was built without an init func.
var ErrNoInitializer = errors.New("model handle has no initializer")

// Handle lazily builds a process-wide model client. The first successful Get
// wins and the value is shared by every later caller; a failed initialisation
// is not cached, so the next Get tries again.
type Handle[T any] struct {
	init func(ctx context.Context) (T, error)

	mu    sync.Mutex
	done  bool
	value T
}

// NewHandle returns a handle that calls init on first use.
func NewHandle[T any](init func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{init: init}
}

// Ready wraps an already constructed value.
func Ready[T any](value T) *Handle[T] {
	return &Handle[T]{done: true, value: value}
}

// Get returns the shared value, initialising it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if h == nil {
		return zero, ErrNoInitializer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return h.value, nil
	}
	if h.init == nil {
		return zero, ErrNoInitializer
	}

	value, err := h.init(ctx)
	if err != nil {
		return zero, err
	}

	h.value = value
	h.done = true
	return value, nil
}

// Initialized reports whether Get already produced a value.
func (h *Handle[T]) Initialized() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

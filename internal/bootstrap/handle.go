package bootstrap

import (
	"fmt"
	"sync"
)

// State is the lifecycle position of a [Handle].
type State uint8

const (
	// StateUnset means no client has been published yet.
	StateUnset State = iota
	// StateReady means the client passed (or is being put through) its readiness probe.
	StateReady
	// StateClosed means the lifespan ended and the client was released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Handle is the shared slot holding one backing service's client for the
// process lifetime. It is safe for concurrent use.
type Handle[T any] struct {
	name string

	mu    sync.RWMutex
	state State
	value T
}

// NewHandle returns an unset handle for the named service.
func NewHandle[T any](name string) *Handle[T] {
	return &Handle[T]{name: name}
}

// Name returns the service name the handle was created for.
func (h *Handle[T]) Name() string {
	return h.name
}

// State returns the current lifecycle state.
func (h *Handle[T]) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Get returns the live client. It fails fast with [ErrNotInitialized] when
// called before the client is published or after it is closed.
func (h *Handle[T]) Get() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var zero T
	switch h.state {
	case StateReady:
		return h.value, nil
	case StateUnset:
		return zero, fmt.Errorf("%w: %s client used before startup", ErrNotInitialized, h.name)
	case StateClosed:
		return zero, fmt.Errorf("%w: %s client used after shutdown", ErrNotInitialized, h.name)
	default:
		return zero, fmt.Errorf("%w: %s client in %s", ErrNotInitialized, h.name, h.state)
	}
}

// Set publishes a client. Only one live client may exist per handle.
func (h *Handle[T]) Set(v T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, h.name)
	}
	h.value = v
	h.state = StateReady
	return nil
}

// Clear drops the client and moves the handle to StateClosed.
func (h *Handle[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	h.value = zero
	h.state = StateClosed
}

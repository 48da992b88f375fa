package submission

import "sync"

// HookRegistry holds handlers that run when a submission run enters a state.
// Handlers for one state execute sequentially in registration order on the
// goroutine executing the run. It is safe for concurrent registration and
// triggering.
type HookRegistry struct {
	handlers map[State][]func(*Run)
	mu       sync.RWMutex
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		handlers: make(map[State][]func(*Run)),
	}
}

// On registers handler for state. Handlers should be quick; a panicking
// handler stops the remaining handlers and propagates to the caller.
func (r *HookRegistry) On(state State, handler func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[state] = append(r.handlers[state], handler)
}

// Trigger runs every handler registered for state.
func (r *HookRegistry) Trigger(state State, run *Run) {
	r.mu.RLock()
	handlers := r.handlers[state]
	r.mu.RUnlock()

	for _, handler := range handlers {
		handler(run)
	}
}

package breaker

import (
	"log/slog"
	"sync"
)

// Service names for the two external dependencies.
const (
	ServiceLLM = "llm"
	ServiceOCR = "ocr"
)

// Registry holds one breaker per external service for the process
// lifetime, so breaker state stays meaningful across requests.
type Registry struct {
	mu            sync.Mutex
	breakers      map[string]*Breaker
	onStateChange func(name string, from, to State)
}

// NewRegistry creates an empty registry. The hook is attached to every
// breaker the registry creates.
func NewRegistry(onStateChange func(name string, from, to State)) *Registry {
	return &Registry{
		breakers:      make(map[string]*Breaker),
		onStateChange: onStateChange,
	}
}

// Get returns the breaker for name, creating it with cfg on first use.
// Subsequent calls ignore cfg and return the existing instance.
func (r *Registry) Get(name string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := New(name, cfg)
	b.OnStateChange(func(name string, from, to State) {
		slog.Warn("circuit breaker state change", "service", name, "from", from.String(), "to", to.String())
		if r.onStateChange != nil {
			r.onStateChange(name, from, to)
		}
	})
	r.breakers[name] = b
	return b
}

// States returns a snapshot of every breaker's current state.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}

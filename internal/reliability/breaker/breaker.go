// Package breaker implements per-service circuit breakers.
//
// A breaker fails fast while its external dependency is unhealthy instead
// of paying the full call timeout on every request. State transitions
// follow the classic Closed -> Open -> HalfOpen cycle.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the circuit state.
type State int

const (
	StateClosed State = iota // calls pass through
	StateOpen                // calls rejected until the recovery timeout elapses
	StateHalfOpen            // probing: calls attempted, counting successes
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker thresholds.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`

	// CallTimeout is advisory only: the wrapped client enforces its own
	// deadline. The breaker never interrupts a running call.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// LLMConfig returns the default thresholds for the LLM service.
func LLMConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		CallTimeout:      30 * time.Second,
	}
}

// OCRConfig returns the default thresholds for the OCR service.
// OCR has a higher natural failure rate, so it gets a looser threshold
// and a longer cooldown.
func OCRConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
		CallTimeout:      60 * time.Second,
	}
}

// OpenError is returned when the circuit rejects a call without
// attempting the underlying operation.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %s is open, retry after %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Breaker guards calls to a single external dependency.
// One instance per dependency lives for the process lifetime.
type Breaker struct {
	name          string
	cfg           Config
	onStateChange func(name string, from, to State)

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// New creates a breaker in the Closed state.
func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg}
}

// OnStateChange registers a hook invoked after every state transition.
// Must be set before the breaker is shared between goroutines.
func (b *Breaker) OnStateChange(fn func(name string, from, to State)) {
	b.onStateChange = fn
}

// Name returns the breaker's service name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call executes op through the breaker. The op runs outside the lock so a
// slow call never blocks other callers' state checks; only the counter
// updates before and after are serialized.
//
// Returns op's result on success, an *OpenError if the circuit rejects
// the call, or op's original error after recording the failure.
func (b *Breaker) Call(op func() (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	result, err := op()
	b.afterCall(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	elapsed := time.Since(b.lastFailureTime)
	if elapsed < b.cfg.RecoveryTimeout {
		return &OpenError{Name: b.name, RetryAfter: b.cfg.RecoveryTimeout - elapsed}
	}

	b.transition(StateHalfOpen)
	b.successCount = 0
	return nil
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onFailure()
		return
	}
	b.onSuccess()
}

func (b *Breaker) onFailure() {
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.lastFailureTime = time.Now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens the circuit immediately.
		b.lastFailureTime = time.Now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.failureCount = 0
			b.transition(StateClosed)
		}
	}
}

// transition changes state and fires the hook. Caller holds the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

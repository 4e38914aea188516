// Package retry re-invokes failing operations with exponential backoff
// and jitter, deferring the retry/no-retry decision to the error
// classifier.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gradewise/grader/internal/reliability/errclass"
)

// Config defines retry behavior. Immutable after construction.
type Config struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base"`
	Jitter          bool          `yaml:"jitter"`
}

// DefaultConfig provides sensible defaults: 3 attempts, 1s base delay
// doubling up to 30s, jittered.
var DefaultConfig = Config{
	MaxAttempts:     3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        30 * time.Second,
	ExponentialBase: 2.0,
	Jitter:          true,
}

// minDelay floors the jittered backoff so it can never go to zero or
// negative.
const minDelay = 100 * time.Millisecond

// OperationStats counts outcomes per operation name.
type OperationStats struct {
	Successes     int
	Failures      int
	TotalAttempts int
}

// Manager executes operations with retry. Safe for concurrent use.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	stats map[string]OperationStats
}

// NewManager creates a retry manager with the given config.
func NewManager(cfg Config) *Manager {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Manager{cfg: cfg, stats: make(map[string]OperationStats)}
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// ExecuteWithRetry runs op up to MaxAttempts times. A non-retryable
// error propagates immediately without exhausting remaining attempts.
// When all attempts fail, the last error is pushed through the handler
// with the retry-attempted flag set and then returned. The backoff sleep
// respects ctx cancellation.
func (m *Manager) ExecuteWithRetry(
	ctx context.Context,
	opName string,
	handler *errclass.Handler,
	ectx errclass.Context,
	op func(ctx context.Context) (any, error),
) (any, error) {
	var lastErr error

	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			m.record(opName, attempt+1, true)
			if attempt > 0 {
				slog.Info("operation recovered after retry",
					"operation", opName, "attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		if !handler.ShouldRetry(err, attempt+1) {
			m.record(opName, attempt+1, false)
			if attempt+1 >= m.cfg.MaxAttempts && errclass.Retryable(err) {
				// Attempts exhausted on a retryable error.
				handler.HandleRetryExhausted(err, ectx)
			}
			// Non-retryable errors stop immediately without exhausting
			// the remaining attempts.
			return nil, lastErr
		}

		delay := m.backoff(attempt)
		slog.Warn("operation failed, backing off",
			"operation", opName, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Unreachable: the last iteration always returns above. Kept for the
	// compiler.
	return nil, lastErr
}

// backoff computes min(base * exponentialBase^attempt, maxDelay), then
// applies +-10% jitter. Clamping happens before jitter; the result is
// floored at minDelay.
func (m *Manager) backoff(attempt int) time.Duration {
	delay := float64(m.cfg.BaseDelay) * math.Pow(m.cfg.ExponentialBase, float64(attempt))
	if delay > float64(m.cfg.MaxDelay) {
		delay = float64(m.cfg.MaxDelay)
	}
	if m.cfg.Jitter {
		delay += delay * 0.1 * (rand.Float64()*2 - 1)
	}
	if delay < float64(minDelay) {
		delay = float64(minDelay)
	}
	return time.Duration(delay)
}

func (m *Manager) record(opName string, attempts int, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats[opName]
	s.TotalAttempts += attempts
	if success {
		s.Successes++
	} else {
		s.Failures++
	}
	m.stats[opName] = s
}

// Stats returns a snapshot of per-operation outcome counts.
func (m *Manager) Stats() map[string]OperationStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]OperationStats, len(m.stats))
	for k, v := range m.stats {
		out[k] = v
	}
	return out
}

// Package fallback substitutes a degraded secondary operation when a
// primary operation fails, keeping both failures classified and counted.
package fallback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gradewise/grader/internal/reliability/errclass"
)

// Strategy is an executable operation with a fixed contract. Fallback
// strategies are declared up front, not attached ad hoc.
type Strategy interface {
	Name() string
	Execute(ctx context.Context) (any, error)
}

// Func adapts a plain function to a Strategy.
type Func struct {
	StrategyName string
	Run          func(ctx context.Context) (any, error)
}

func (f Func) Name() string { return f.StrategyName }

func (f Func) Execute(ctx context.Context) (any, error) { return f.Run(ctx) }

// Manager runs primary/fallback pairs. Safe for concurrent use.
type Manager struct {
	handler *errclass.Handler

	mu    sync.Mutex
	usage map[string]int
}

// NewManager creates a fallback manager backed by the given error
// handler.
func NewManager(handler *errclass.Handler) *Manager {
	return &Manager{handler: handler, usage: make(map[string]int)}
}

// ExecuteWithFallback tries primary; on failure the error is classified
// for bookkeeping only, then fb runs. The returned bool reports whether
// the fallback produced the result. If fb also fails, its error is
// classified and propagated — the primary failure stays visible only in
// logs and statistics.
func (m *Manager) ExecuteWithFallback(
	ctx context.Context,
	primary, fb Strategy,
	opName string,
	ectx errclass.Context,
) (any, bool, error) {
	result, err := primary.Execute(ctx)
	if err == nil {
		return result, false, nil
	}

	m.handler.HandleError(err, ectx)
	slog.Warn("primary operation failed, trying fallback",
		"operation", opName, "fallback", fb.Name(), "error", err)

	result, fbErr := fb.Execute(ctx)
	if fbErr != nil {
		m.handler.HandleFallbackFailure(fbErr, ectx)
		return nil, false, fbErr
	}

	m.mu.Lock()
	m.usage[opName]++
	m.mu.Unlock()

	return result, true, nil
}

// Stats returns per-operation fallback usage counts.
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.usage))
	for k, v := range m.usage {
		out[k] = v
	}
	return out
}

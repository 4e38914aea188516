package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gradewise/grader/internal/reliability/errclass"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          false,
	}
}

func TestExecuteWithRetrySucceedsAfterFailures(t *testing.T) {
	m := NewManager(fastConfig())
	h := errclass.NewHandler(3)
	ectx := errclass.NewContext("test_op", "llm")

	calls := 0
	result, err := m.ExecuteWithRetry(context.Background(), "test_op", h, ectx,
		func(ctx context.Context) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection refused")
			}
			return "done", nil
		})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "done" {
		t.Errorf("Expected done, got %v", result)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	m := NewManager(fastConfig())
	h := errclass.NewHandler(3)
	ectx := errclass.NewContext("test_op", "llm")

	calls := 0
	_, err := m.ExecuteWithRetry(context.Background(), "test_op", h, ectx,
		func(ctx context.Context) (any, error) {
			calls++
			return nil, errors.New("request timeout")
		})

	if err == nil {
		t.Fatal("Expected error after exhaustion")
	}
	if calls != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", calls)
	}

	// Exhaustion on a retryable error is recorded by the handler
	stats := h.GetErrorStats()
	if stats.Total != 1 {
		t.Errorf("Expected 1 recorded error, got %d", stats.Total)
	}
}

func TestExecuteWithRetryStopsOnNonRetryable(t *testing.T) {
	m := NewManager(fastConfig())
	h := errclass.NewHandler(3)
	ectx := errclass.NewContext("test_op", "llm")

	calls := 0
	_, err := m.ExecuteWithRetry(context.Background(), "test_op", h, ectx,
		func(ctx context.Context) (any, error) {
			calls++
			return nil, errors.New("invalid api key")
		})

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 attempt for a non-retryable error, got %d", calls)
	}

	// No exhaustion record for non-retryable failures
	stats := h.GetErrorStats()
	if stats.Total != 0 {
		t.Errorf("Expected 0 recorded errors, got %d", stats.Total)
	}
}

func TestExecuteWithRetryRespectsContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 10 * time.Second // force a long backoff
	cfg.MaxDelay = 30 * time.Second
	m := NewManager(cfg)
	h := errclass.NewHandler(3)
	ectx := errclass.NewContext("test_op", "llm")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.ExecuteWithRetry(ctx, "test_op", h, ectx,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("connection refused")
		})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBackoffClampAndFloor(t *testing.T) {
	m := NewManager(Config{
		MaxAttempts:     5,
		BaseDelay:       1 * time.Second,
		MaxDelay:        4 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	})

	if d := m.backoff(0); d != 1*time.Second {
		t.Errorf("Attempt 0: expected 1s, got %s", d)
	}
	if d := m.backoff(1); d != 2*time.Second {
		t.Errorf("Attempt 1: expected 2s, got %s", d)
	}
	// Clamped at MaxDelay from attempt 2 onward
	if d := m.backoff(3); d != 4*time.Second {
		t.Errorf("Attempt 3: expected clamp at 4s, got %s", d)
	}

	// Floor at 100ms for tiny base delays
	tiny := NewManager(Config{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          true,
	})
	if d := tiny.backoff(0); d < minDelay {
		t.Errorf("Expected floor of %s, got %s", minDelay, d)
	}
}

func TestBackoffJitterStaysWithinBand(t *testing.T) {
	m := NewManager(Config{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	})

	for i := 0; i < 100; i++ {
		d := m.backoff(2) // nominal 4s
		if d < 3600*time.Millisecond || d > 4400*time.Millisecond {
			t.Fatalf("Jittered delay %s outside +-10%% band around 4s", d)
		}
	}
}

func TestStatsRecording(t *testing.T) {
	m := NewManager(fastConfig())
	h := errclass.NewHandler(3)
	ectx := errclass.NewContext("op_a", "llm")

	m.ExecuteWithRetry(context.Background(), "op_a", h, ectx,
		func(ctx context.Context) (any, error) { return 1, nil })
	m.ExecuteWithRetry(context.Background(), "op_a", h, ectx,
		func(ctx context.Context) (any, error) { return nil, errors.New("bad input") })

	stats := m.Stats()["op_a"]
	if stats.Successes != 1 {
		t.Errorf("Expected 1 success, got %d", stats.Successes)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
	if stats.TotalAttempts != 2 {
		t.Errorf("Expected 2 total attempts, got %d", stats.TotalAttempts)
	}
}

package errclass

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context carries per-operation metadata for error reporting. It lives
// only for the duration of one error-handling call.
type Context struct {
	Operation string
	Service   string
	Timestamp time.Time
	UserID    string
	RequestID string
	Metadata  map[string]any
}

// NewContext creates a context stamped with the current time and a fresh
// request id.
func NewContext(operation, service string) Context {
	return Context{
		Operation: operation,
		Service:   service,
		Timestamp: time.Now(),
		RequestID: uuid.New().String(),
	}
}

// Response is the structured classification of a failed operation.
type Response struct {
	Success        bool
	ErrorCode      string
	Message        string
	Severity       Severity
	Category       Category
	FallbackUsed   bool
	RetryAttempted bool
	Suggestions    []string
	Context        *Context
}

var categorySuggestions = map[Category][]string{
	CategoryNetwork: {
		"check network connectivity",
		"verify the provider endpoint is reachable",
	},
	CategoryDependency: {
		"verify the dependent service is running",
		"check provider credentials and quotas",
	},
	CategoryValidation: {
		"inspect the request payload for malformed fields",
		"confirm the expected response schema",
	},
	CategoryResource: {
		"check disk space and memory usage",
		"review provider rate limits and quotas",
	},
	CategoryProcessing: {
		"verify the uploaded document is not corrupted",
		"retry with a smaller document",
	},
	CategoryConfiguration: {
		"check configuration values and environment variables",
		"verify API keys are set",
	},
}

var universalSuggestions = []string{
	"check the service logs for details",
	"retry the operation if the failure is transient",
}

// Handler classifies failures and keeps process-lifetime aggregate
// counts per category. Classification itself is stateless; only the
// counters are shared, guarded by the mutex.
type Handler struct {
	maxRetryAttempts int

	mu         sync.Mutex
	total      int
	byCategory map[Category]int
}

// NewHandler creates a handler. maxRetryAttempts bounds ShouldRetry.
func NewHandler(maxRetryAttempts int) *Handler {
	return &Handler{
		maxRetryAttempts: maxRetryAttempts,
		byCategory:       make(map[Category]int),
	}
}

// HandleError classifies err and records it.
func (h *Handler) HandleError(err error, ectx Context) Response {
	return h.handle(err, ectx, false, false)
}

// HandleRetryExhausted records an error whose retries were exhausted.
func (h *Handler) HandleRetryExhausted(err error, ectx Context) Response {
	return h.handle(err, ectx, false, true)
}

// HandleFallbackFailure records the error a fallback operation raised
// after the primary had already failed.
func (h *Handler) HandleFallbackFailure(err error, ectx Context) Response {
	return h.handle(err, ectx, true, false)
}

func (h *Handler) handle(err error, ectx Context, fallbackUsed, retryAttempted bool) Response {
	severity, category := Classify(err)
	code := ErrorCode(category, err)

	suggestions := append([]string{}, categorySuggestions[category]...)
	suggestions = append(suggestions, universalSuggestions...)

	resp := Response{
		Success:        false,
		ErrorCode:      code,
		Message:        err.Error(),
		Severity:       severity,
		Category:       category,
		FallbackUsed:   fallbackUsed,
		RetryAttempted: retryAttempted,
		Suggestions:    suggestions,
		Context:        &ectx,
	}

	h.mu.Lock()
	h.total++
	h.byCategory[category]++
	h.mu.Unlock()

	args := []any{
		"operation", ectx.Operation,
		"service", ectx.Service,
		"code", code,
		"category", string(category),
		"error", err,
	}
	switch severity {
	case SeverityCritical:
		slog.Error("operation failed", args...)
	case SeverityRecoverable, SeverityWarning:
		slog.Warn("operation failed", args...)
	default:
		slog.Info("operation failed", args...)
	}

	return resp
}

// ShouldRetry reports whether a failed attempt should be retried.
// attempt is 1-based: once attempt reaches the configured maximum, no
// further retries happen regardless of the error text.
func (h *Handler) ShouldRetry(err error, attempt int) bool {
	if attempt >= h.maxRetryAttempts {
		return false
	}
	return Retryable(err)
}

// Stats is a snapshot of the aggregate error counters.
type Stats struct {
	Total       int
	ByCategory  map[Category]int
	Percentages map[Category]float64
}

// GetErrorStats returns totals and per-category percentages since
// process start. The counters are never reset automatically.
func (h *Handler) GetErrorStats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		Total:       h.total,
		ByCategory:  make(map[Category]int, len(h.byCategory)),
		Percentages: make(map[Category]float64, len(h.byCategory)),
	}
	for cat, n := range h.byCategory {
		stats.ByCategory[cat] = n
		if h.total > 0 {
			stats.Percentages[cat] = float64(n) / float64(h.total) * 100
		}
	}
	return stats
}

// ErrorCode builds "{CATEGORY}_{TYPE}_{4-digit-time-hash}". The time
// component is for log correlation, not deduplication.
func ErrorCode(category Category, err error) string {
	return fmt.Sprintf("%s_%s_%04d",
		strings.ToUpper(string(category)),
		typeName(err),
		time.Now().Unix()%10000,
	)
}

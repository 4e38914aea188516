package errclass

import (
	"errors"
	"testing"
)

func TestHandlerCountsByCategory(t *testing.T) {
	h := NewHandler(3)
	ectx := NewContext("grade_submission", "llm")

	h.HandleError(errors.New("connection refused"), ectx)
	h.HandleError(errors.New("network down"), ectx)
	h.HandleError(errors.New("invalid schema"), ectx)

	stats := h.GetErrorStats()
	if stats.Total != 3 {
		t.Errorf("Expected 3 total errors, got %d", stats.Total)
	}
	if stats.ByCategory[CategoryNetwork] != 2 {
		t.Errorf("Expected 2 network errors, got %d", stats.ByCategory[CategoryNetwork])
	}
	if stats.ByCategory[CategoryValidation] != 1 {
		t.Errorf("Expected 1 validation error, got %d", stats.ByCategory[CategoryValidation])
	}

	pct := stats.Percentages[CategoryNetwork]
	if pct < 66.6 || pct > 66.7 {
		t.Errorf("Expected ~66.67%% network, got %.2f", pct)
	}
}

func TestHandlerResponseFields(t *testing.T) {
	h := NewHandler(3)
	ectx := NewContext("extract_text", "ocr")

	resp := h.HandleRetryExhausted(errors.New("request timeout"), ectx)
	if resp.Success {
		t.Error("Expected Success false")
	}
	if !resp.RetryAttempted {
		t.Error("Expected RetryAttempted true")
	}
	if resp.FallbackUsed {
		t.Error("Expected FallbackUsed false")
	}
	if resp.Severity != SeverityRecoverable {
		t.Errorf("Expected recoverable severity, got %s", resp.Severity)
	}
	if resp.Category != CategoryNetwork {
		t.Errorf("Expected network category, got %s", resp.Category)
	}
	if len(resp.Suggestions) < 2 {
		t.Errorf("Expected at least the universal suggestions, got %v", resp.Suggestions)
	}
	if resp.Context.RequestID == "" {
		t.Error("Expected a request id on the context")
	}

	fb := h.HandleFallbackFailure(errors.New("fallback grading failed"), ectx)
	if !fb.FallbackUsed {
		t.Error("Expected FallbackUsed true")
	}
}

func TestShouldRetry(t *testing.T) {
	h := NewHandler(3)

	retryable := errors.New("connection reset")
	if !h.ShouldRetry(retryable, 1) {
		t.Error("Expected retry on attempt 1")
	}
	if !h.ShouldRetry(retryable, 2) {
		t.Error("Expected retry on attempt 2")
	}
	if h.ShouldRetry(retryable, 3) {
		t.Error("Expected no retry once attempts reach the maximum")
	}

	if h.ShouldRetry(errors.New("invalid api key"), 1) {
		t.Error("Expected no retry for a non-retryable error")
	}
}

func TestUnknownCategoryGetsUniversalSuggestions(t *testing.T) {
	h := NewHandler(3)
	resp := h.HandleError(errors.New("something strange"), NewContext("op", "llm"))

	if resp.Category != CategoryUnknown {
		t.Fatalf("Expected unknown category, got %s", resp.Category)
	}
	if len(resp.Suggestions) != len(universalSuggestions) {
		t.Errorf("Expected %d suggestions, got %d", len(universalSuggestions), len(resp.Suggestions))
	}
}

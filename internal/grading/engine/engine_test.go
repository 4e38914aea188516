package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
	"github.com/gradewise/grader/internal/grading/validation"
	"github.com/gradewise/grader/internal/infra/llm"
	"github.com/gradewise/grader/internal/infra/storage/memory"
	"github.com/gradewise/grader/internal/reliability/breaker"
	"github.com/gradewise/grader/internal/reliability/errclass"
	"github.com/gradewise/grader/internal/reliability/fallback"
	"github.com/gradewise/grader/internal/reliability/retry"
)

type stubLLM struct {
	calls  int
	result *llm.GradeResult
	err    error
}

func (s *stubLLM) GradeAnswer(ctx context.Context, req llm.GradeRequest) (*llm.GradeResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubOCR struct {
	calls int
	text  string
	err   error
}

func (s *stubOCR) ExtractText(ctx context.Context, document []byte, mimeType string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type fixture struct {
	engine *Engine
	llm    *stubLLM
	ocr    *stubOCR
	store  *memory.MemoryStorage
	subs   *memory.SubmissionRepo
}

func newFixture(llmStub *stubLLM, ocrStub *stubOCR) *fixture {
	store := memory.NewMemoryStorage()
	subs := memory.NewSubmissionRepo(store)
	handler := errclass.NewHandler(3)

	eng := New(Deps{
		LLM:      llmStub,
		OCR:      ocrStub,
		Breakers: breaker.NewRegistry(nil),
		Retries: retry.NewManager(retry.Config{
			MaxAttempts:     3,
			BaseDelay:       1 * time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
			ExponentialBase: 2.0,
		}),
		Errors:    handler,
		Fallbacks: fallback.NewManager(handler),
		Validator: validation.NewService(validation.LevelStandard),
		Subs:      subs,
		Grades:    memory.NewGradeRepo(store),
		ErrLog:    memory.NewErrorLogRepo(store),
	})

	return &fixture{engine: eng, llm: llmStub, ocr: ocrStub, store: store, subs: subs}
}

var testQuestion = &domain.GuideQuestion{
	ID:          "q-1",
	ExamID:      "exam-1",
	Number:      1,
	Text:        "Explain photosynthesis",
	ModelAnswer: "Photosynthesis converts light energy into chemical energy in plants",
	MaxScore:    100,
}

func testSubmission(answer string) *domain.Submission {
	return &domain.Submission{
		ID:         "sub-1",
		ExamID:     "exam-1",
		StudentID:  "student-1",
		QuestionID: "q-1",
		AnswerText: answer,
		Source:     domain.SourceText,
	}
}

func TestGradeSubmissionHappyPath(t *testing.T) {
	f := newFixture(&stubLLM{result: &llm.GradeResult{Score: 85, Feedback: "good answer"}}, &stubOCR{})
	ctx := context.Background()

	sub := testSubmission(testQuestion.ModelAnswer)
	f.subs.Add(ctx, sub)

	grade, err := f.engine.GradeSubmission(ctx, sub, testQuestion)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if grade.Score != 85 {
		t.Errorf("Expected score 85, got %d", grade.Score)
	}
	if grade.FallbackUsed {
		t.Error("Expected primary path, not fallback")
	}
	if grade.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %.3f", grade.Confidence)
	}
	if f.llm.calls != 1 {
		t.Errorf("Expected 1 LLM call, got %d", f.llm.calls)
	}

	got, _ := f.subs.Get(ctx, "sub-1")
	if got.Status != domain.SubmissionStatusGraded {
		t.Errorf("Expected graded status, got %s", got.Status)
	}
}

func TestGradeSubmissionFallsBackOnProviderFailure(t *testing.T) {
	f := newFixture(&stubLLM{err: errors.New("invalid api key")}, &stubOCR{})
	ctx := context.Background()

	sub := testSubmission(testQuestion.ModelAnswer)
	f.subs.Add(ctx, sub)

	grade, err := f.engine.GradeSubmission(ctx, sub, testQuestion)
	if err != nil {
		t.Fatalf("Expected fallback grade, got error %v", err)
	}
	if !grade.FallbackUsed {
		t.Error("Expected FallbackUsed true")
	}
	// Identical answer means full keyword overlap
	if grade.Score != 100 {
		t.Errorf("Expected keyword score 100, got %d", grade.Score)
	}
	if !strings.Contains(grade.Feedback, "keyword overlap fallback") {
		t.Errorf("Expected fallback feedback, got %q", grade.Feedback)
	}
	// Non-retryable error: a single attempt
	if f.llm.calls != 1 {
		t.Errorf("Expected 1 LLM call, got %d", f.llm.calls)
	}
}

func TestGradeSubmissionRetriesThenFallsBack(t *testing.T) {
	f := newFixture(&stubLLM{err: errors.New("connection refused")}, &stubOCR{})
	ctx := context.Background()

	sub := testSubmission("plants use light")
	f.subs.Add(ctx, sub)

	grade, err := f.engine.GradeSubmission(ctx, sub, testQuestion)
	if err != nil {
		t.Fatalf("Expected fallback grade, got error %v", err)
	}
	if !grade.FallbackUsed {
		t.Error("Expected FallbackUsed true")
	}
	// Retryable error exhausts all attempts before falling back
	if f.llm.calls != 3 {
		t.Errorf("Expected 3 LLM calls, got %d", f.llm.calls)
	}
}

func TestOpenBreakerShortCircuitsRetries(t *testing.T) {
	f := newFixture(&stubLLM{err: errors.New("connection refused")}, &stubOCR{})
	ctx := context.Background()

	sub := testSubmission("plants use light")
	f.subs.Add(ctx, sub)

	// First grading exhausts 3 attempts; the LLM breaker opens on the
	// third failure.
	f.engine.GradeSubmission(ctx, sub, testQuestion)
	if f.llm.calls != 3 {
		t.Fatalf("Expected 3 LLM calls after first grading, got %d", f.llm.calls)
	}

	// Second grading: the open circuit rejects before the op runs, the
	// rejection is not retryable, and the fallback still grades.
	grade, err := f.engine.GradeSubmission(ctx, sub, testQuestion)
	if err != nil {
		t.Fatalf("Expected fallback grade, got %v", err)
	}
	if !grade.FallbackUsed {
		t.Error("Expected FallbackUsed true")
	}
	if f.llm.calls != 3 {
		t.Errorf("Expected no further LLM calls through an open circuit, got %d", f.llm.calls)
	}
}

func TestGradeSubmissionClampsOutOfRangeScore(t *testing.T) {
	f := newFixture(&stubLLM{result: &llm.GradeResult{Score: 150, Feedback: "great"}}, &stubOCR{})
	ctx := context.Background()

	sub := testSubmission(testQuestion.ModelAnswer)
	f.subs.Add(ctx, sub)

	grade, err := f.engine.GradeSubmission(ctx, sub, testQuestion)
	if err != nil {
		t.Fatalf("Expected clamped grade, got %v", err)
	}
	if grade.Score != 100 {
		t.Errorf("Expected clamped score 100, got %d", grade.Score)
	}
	if grade.Confidence >= 1.0 {
		t.Errorf("Expected degraded confidence, got %.3f", grade.Confidence)
	}
}

func TestExtractTextPassthroughFallback(t *testing.T) {
	f := newFixture(&stubLLM{}, &stubOCR{err: errors.New("ocr http 503: overloaded")})
	ctx := context.Background()

	// Plain text falls through to the raw document
	text, err := f.engine.ExtractText(ctx, []byte("typed answer"), "text/plain")
	if err != nil {
		t.Fatalf("Expected passthrough, got %v", err)
	}
	if text != "typed answer" {
		t.Errorf("Expected raw document text, got %q", text)
	}

	// Binary formats have no fallback
	_, err = f.engine.ExtractText(ctx, []byte{0x89, 0x50}, "image/png")
	if err == nil {
		t.Fatal("Expected error for image with OCR down")
	}
}

func TestExtractTextPrimaryPath(t *testing.T) {
	f := newFixture(&stubLLM{}, &stubOCR{text: "extracted from pdf"})
	ctx := context.Background()

	text, err := f.engine.ExtractText(ctx, []byte("%PDF-1.4"), "application/pdf")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if text != "extracted from pdf" {
		t.Errorf("Expected extracted text, got %q", text)
	}
	if f.ocr.calls != 1 {
		t.Errorf("Expected 1 OCR call, got %d", f.ocr.calls)
	}
}

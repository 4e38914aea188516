// Package engine orchestrates grading: provider calls wrapped by the
// reliability layer, score validation, and persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gradewise/grader/internal/core/domain"
	"github.com/gradewise/grader/internal/grading/metrics"
	"github.com/gradewise/grader/internal/grading/validation"
	"github.com/gradewise/grader/internal/infra/llm"
	"github.com/gradewise/grader/internal/infra/storage"
	"github.com/gradewise/grader/internal/reliability/breaker"
	"github.com/gradewise/grader/internal/reliability/errclass"
	"github.com/gradewise/grader/internal/reliability/fallback"
	"github.com/gradewise/grader/internal/reliability/retry"
)

// LLMGrader grades one answer remotely.
type LLMGrader interface {
	GradeAnswer(ctx context.Context, req llm.GradeRequest) (*llm.GradeResult, error)
}

// TextExtractor extracts text from an uploaded document.
type TextExtractor interface {
	ExtractText(ctx context.Context, document []byte, mimeType string) (string, error)
}

// Engine wires providers, the reliability layer and storage together.
type Engine struct {
	llm       LLMGrader
	local     *llm.KeywordGrader
	ocr       TextExtractor
	breakers  *breaker.Registry
	retries   *retry.Manager
	errors    *errclass.Handler
	fallbacks *fallback.Manager
	validator *validation.Service
	subs      storage.SubmissionRepository
	grades    storage.GradeRepository
	errlog    storage.ErrorLogRepository

	llmBreakerCfg breaker.Config
	ocrBreakerCfg breaker.Config
}

// Deps bundles the engine's collaborators.
type Deps struct {
	LLM       LLMGrader
	OCR       TextExtractor
	Breakers  *breaker.Registry
	Retries   *retry.Manager
	Errors    *errclass.Handler
	Fallbacks *fallback.Manager
	Validator *validation.Service
	Subs      storage.SubmissionRepository
	Grades    storage.GradeRepository
	ErrLog    storage.ErrorLogRepository

	LLMBreaker breaker.Config
	OCRBreaker breaker.Config
}

// New creates a grading engine.
func New(deps Deps) *Engine {
	if deps.LLMBreaker.FailureThreshold == 0 {
		deps.LLMBreaker = breaker.LLMConfig()
	}
	if deps.OCRBreaker.FailureThreshold == 0 {
		deps.OCRBreaker = breaker.OCRConfig()
	}
	return &Engine{
		llm:           deps.LLM,
		local:         &llm.KeywordGrader{},
		ocr:           deps.OCR,
		breakers:      deps.Breakers,
		retries:       deps.Retries,
		errors:        deps.Errors,
		fallbacks:     deps.Fallbacks,
		validator:     deps.Validator,
		subs:          deps.Subs,
		grades:        deps.Grades,
		errlog:        deps.ErrLog,
		llmBreakerCfg: deps.LLMBreaker,
		ocrBreakerCfg: deps.OCRBreaker,
	}
}

// GradeSubmission grades one submission against its guide question.
//
// The LLM call is wrapped breaker-inside-retry: the breaker guards each
// individual attempt, and an open circuit short-circuits the retry loop
// because its error carries no retryable keyword. If the primary path
// exhausts, the keyword-overlap fallback produces a degraded grade. The
// raw score then passes through validation before being persisted.
func (e *Engine) GradeSubmission(ctx context.Context, sub *domain.Submission, question *domain.GuideQuestion) (*domain.Grade, error) {
	req := llm.GradeRequest{
		Question:      question.Text,
		ModelAnswer:   question.ModelAnswer,
		StudentAnswer: sub.AnswerText,
		MaxScore:      question.MaxScore,
		Criteria:      question.Criteria,
	}

	ectx := errclass.NewContext("grade_submission", breaker.ServiceLLM)
	br := e.breakers.Get(breaker.ServiceLLM, e.llmBreakerCfg)

	primary := fallback.Func{
		StrategyName: "llm_grade",
		Run: func(ctx context.Context) (any, error) {
			return e.retries.ExecuteWithRetry(ctx, "llm_grade", e.errors, ectx,
				func(ctx context.Context) (any, error) {
					metrics.ProviderCallsTotal.WithLabelValues(breaker.ServiceLLM, "grade_answer").Inc()
					return br.Call(func() (any, error) {
						return e.llm.GradeAnswer(ctx, req)
					})
				})
		},
	}
	degraded := fallback.Func{
		StrategyName: "keyword_grade",
		Run: func(ctx context.Context) (any, error) {
			return e.local.Grade(req), nil
		},
	}

	result, usedFallback, err := e.fallbacks.ExecuteWithFallback(ctx, primary, degraded, "grade_submission", ectx)
	if err != nil {
		e.recordFailure(ctx, err, ectx)
		metrics.SubmissionsGraded.WithLabelValues("failed").Inc()
		if uerr := e.subs.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusFailed, err.Error()); uerr != nil {
			slog.Warn("failed to update submission status", "submission", sub.ID, "error", uerr)
		}
		return nil, fmt.Errorf("grading failed for submission %s: %w", sub.ID, err)
	}
	if usedFallback {
		metrics.FallbackUsedTotal.WithLabelValues("grade_submission").Inc()
	}

	raw := result.(*llm.GradeResult)

	vres := e.validator.ValidateScore(validation.Request{
		Score:          raw.Score,
		Question:       question.Text,
		ModelAnswer:    question.ModelAnswer,
		StudentAnswer:  sub.AnswerText,
		CriteriaScores: raw.CriteriaScores,
		Feedback:       raw.Feedback,
	})
	metrics.ValidationConfidence.Observe(vres.Confidence)

	score := raw.Score
	if !vres.IsValid && vres.AdjustedScore != nil {
		slog.Warn("score out of range, clamped",
			"submission", sub.ID, "raw_score", raw.Score, "adjusted", *vres.AdjustedScore)
		score = *vres.AdjustedScore
	}
	if len(vres.Warnings) > 0 {
		slog.Info("score accepted with warnings",
			"submission", sub.ID, "score", score,
			"confidence", vres.Confidence, "warnings", len(vres.Warnings))
	}

	grade := &domain.Grade{
		ID:           uuid.New().String(),
		SubmissionID: sub.ID,
		QuestionID:   question.ID,
		Score:        score,
		Feedback:     raw.Feedback,
		Confidence:   vres.Confidence,
		Warnings:     vres.Warnings,
		FallbackUsed: usedFallback,
		CreatedAt:    time.Now(),
	}

	if err := e.grades.Add(ctx, grade); err != nil {
		return nil, fmt.Errorf("failed to persist grade: %w", err)
	}
	if err := e.subs.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusGraded, ""); err != nil {
		slog.Warn("failed to update submission status", "submission", sub.ID, "error", err)
	}
	metrics.SubmissionsGraded.WithLabelValues("graded").Inc()

	return grade, nil
}

// ExtractText runs OCR through the reliability layer. Plain-text uploads
// fall back to a passthrough when the OCR service is unavailable.
func (e *Engine) ExtractText(ctx context.Context, document []byte, mimeType string) (string, error) {
	ectx := errclass.NewContext("extract_text", breaker.ServiceOCR)
	br := e.breakers.Get(breaker.ServiceOCR, e.ocrBreakerCfg)

	primary := fallback.Func{
		StrategyName: "ocr_extract",
		Run: func(ctx context.Context) (any, error) {
			return e.retries.ExecuteWithRetry(ctx, "ocr_extract", e.errors, ectx,
				func(ctx context.Context) (any, error) {
					metrics.ProviderCallsTotal.WithLabelValues(breaker.ServiceOCR, "extract_text").Inc()
					return br.Call(func() (any, error) {
						return e.ocr.ExtractText(ctx, document, mimeType)
					})
				})
		},
	}
	passthrough := fallback.Func{
		StrategyName: "plaintext_passthrough",
		Run: func(ctx context.Context) (any, error) {
			if mimeType == "text/plain" {
				return string(document), nil
			}
			return nil, fmt.Errorf("no text extraction fallback for %s", mimeType)
		},
	}

	result, usedFallback, err := e.fallbacks.ExecuteWithFallback(ctx, primary, passthrough, "extract_text", ectx)
	if err != nil {
		e.recordFailure(ctx, err, ectx)
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	if usedFallback {
		metrics.FallbackUsedTotal.WithLabelValues("extract_text").Inc()
	}

	return result.(string), nil
}

// ErrorHandler exposes the engine's error handler for health reporting.
func (e *Engine) ErrorHandler() *errclass.Handler {
	return e.errors
}

// recordFailure persists a classified error record. Classification here
// is the pure function, so the handler's counters (already incremented
// inside the retry/fallback path) are not double-counted.
func (e *Engine) recordFailure(ctx context.Context, err error, ectx errclass.Context) {
	severity, category := errclass.Classify(err)
	metrics.ProviderErrorsTotal.WithLabelValues(ectx.Service, string(category)).Inc()

	if e.errlog == nil {
		return
	}
	rec := &domain.ErrorRecord{
		ID:        uuid.New().String(),
		Code:      errclass.ErrorCode(category, err),
		Operation: ectx.Operation,
		Service:   ectx.Service,
		Severity:  string(severity),
		Category:  string(category),
		Message:   err.Error(),
		CreatedAt: time.Now(),
	}
	if aerr := e.errlog.Add(ctx, rec); aerr != nil {
		slog.Warn("failed to persist error record", "error", aerr)
	}
}

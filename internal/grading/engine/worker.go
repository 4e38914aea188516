package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
	"github.com/gradewise/grader/internal/grading/metrics"
	"github.com/gradewise/grader/internal/infra/redis"
	"github.com/gradewise/grader/internal/infra/storage"
)

// WorkerConfig controls the queue consumer.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries"`
}

// Worker drains the pending-submission queue and feeds the engine.
// Submissions that keep failing are moved to the dead-letter set after
// MaxRetries requeues.
type Worker struct {
	cfg       WorkerConfig
	engine    *Engine
	queue     *redis.Client
	subs      storage.SubmissionRepository
	questions storage.QuestionRepository
}

// NewWorker creates a queue worker.
func NewWorker(cfg WorkerConfig, eng *Engine, queue *redis.Client, subs storage.SubmissionRepository, questions storage.QuestionRepository) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Worker{
		cfg:       cfg,
		engine:    eng,
		queue:     queue,
		subs:      subs,
		questions: questions,
	}
}

// Start blocks until ctx is cancelled, polling the queue on a ticker.
// An empty poll just waits for the next tick.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("grading worker started",
		"poll_interval", w.cfg.PollInterval, "max_retries", w.cfg.MaxRetries)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("grading worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes queued submissions until the queue is empty or an
// error stops the pass.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.processNext(ctx)
		if err != nil {
			slog.Error("failed to process submission", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// processNext pops one submission and grades it. Returns false when the
// queue is empty.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	sub, err := w.queue.Pop(ctx)
	if err != nil {
		return false, err
	}
	if sub == nil {
		if depth, derr := w.queue.QueueDepth(ctx); derr == nil {
			metrics.QueueDepth.Set(float64(depth))
		}
		return false, nil
	}

	if err := w.subs.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusGrading, ""); err != nil {
		slog.Warn("failed to mark submission grading", "submission", sub.ID, "error", err)
	}

	question, err := w.questions.Get(ctx, sub.QuestionID)
	if err != nil {
		return true, w.handleFailure(ctx, sub, err)
	}
	if question == nil {
		// No guide question means no retry will ever succeed.
		slog.Error("guide question not found, dead-lettering",
			"submission", sub.ID, "question", sub.QuestionID)
		return true, w.deadLetter(ctx, sub, "guide question not found")
	}

	if _, err := w.engine.GradeSubmission(ctx, sub, question); err != nil {
		return true, w.handleFailure(ctx, sub, err)
	}

	if depth, derr := w.queue.QueueDepth(ctx); derr == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	return true, nil
}

func (w *Worker) handleFailure(ctx context.Context, sub *domain.Submission, cause error) error {
	sub.RetryCount++
	if err := w.subs.IncrementRetry(ctx, sub.ID); err != nil {
		slog.Warn("failed to increment retry count", "submission", sub.ID, "error", err)
	}

	if sub.RetryCount >= w.cfg.MaxRetries {
		return w.deadLetter(ctx, sub, cause.Error())
	}

	slog.Warn("submission grading failed, requeueing",
		"submission", sub.ID, "retry_count", sub.RetryCount, "error", cause)
	if err := w.queue.Requeue(ctx, sub); err != nil {
		return err
	}
	if err := w.subs.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusPending, cause.Error()); err != nil {
		slog.Warn("failed to update submission status", "submission", sub.ID, "error", err)
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, sub *domain.Submission, reason string) error {
	slog.Error("submission dead-lettered",
		"submission", sub.ID, "retry_count", sub.RetryCount, "reason", reason)
	metrics.SubmissionsGraded.WithLabelValues("dead_letter").Inc()

	if err := w.queue.DeadLetter(ctx, sub); err != nil {
		return err
	}
	return w.subs.UpdateStatus(ctx, sub.ID, domain.SubmissionStatusDeadLetter, reason)
}

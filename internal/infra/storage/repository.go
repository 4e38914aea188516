// Package storage defines repository interfaces for grading data.
// Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// SubmissionRepository persists student submissions.
type SubmissionRepository interface {
	Add(ctx context.Context, sub *domain.Submission) error
	Get(ctx context.Context, id string) (*domain.Submission, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMsg string) error
	IncrementRetry(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]*domain.Submission, error)
}

// QuestionRepository persists marking-guide questions.
type QuestionRepository interface {
	Add(ctx context.Context, q *domain.GuideQuestion) error
	Get(ctx context.Context, id string) (*domain.GuideQuestion, error)
	ListByExam(ctx context.Context, examID string) ([]*domain.GuideQuestion, error)
}

// GradeRepository persists accepted grades.
type GradeRepository interface {
	Add(ctx context.Context, g *domain.Grade) error
	GetBySubmission(ctx context.Context, submissionID string) (*domain.Grade, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Grade, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ErrorLogRepository persists classified failures for audit.
type ErrorLogRepository interface {
	Add(ctx context.Context, rec *domain.ErrorRecord) error
	CountByCategory(ctx context.Context) (map[string]int, error)
}

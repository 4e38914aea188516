package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
)

// SubmissionRepo implements storage.SubmissionRepository using PostgreSQL.
type SubmissionRepo struct {
	db *DB
}

// NewSubmissionRepo creates a new PostgreSQL submission repository.
func NewSubmissionRepo(db *DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

type submissionRow struct {
	ID         string    `db:"id"`
	ExamID     string    `db:"exam_id"`
	StudentID  string    `db:"student_id"`
	QuestionID string    `db:"question_id"`
	AnswerText string    `db:"answer_text"`
	Source     string    `db:"source"`
	Status     string    `db:"status"`
	RetryCount int       `db:"retry_count"`
	ErrorMsg   string    `db:"error_msg"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r submissionRow) toDomain() *domain.Submission {
	return &domain.Submission{
		ID:         r.ID,
		ExamID:     r.ExamID,
		StudentID:  r.StudentID,
		QuestionID: r.QuestionID,
		AnswerText: r.AnswerText,
		Source:     domain.SubmissionSource(r.Source),
		Status:     domain.SubmissionStatus(r.Status),
		RetryCount: r.RetryCount,
		Error:      r.ErrorMsg,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Add inserts a submission.
func (r *SubmissionRepo) Add(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO submissions (id, exam_id, student_id, question_id, answer_text, source, status, retry_count, error_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	status := string(sub.Status)
	if status == "" {
		status = string(domain.SubmissionStatusPending)
	}

	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.ExamID, sub.StudentID, sub.QuestionID,
		sub.AnswerText, string(sub.Source), status, sub.RetryCount, sub.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to add submission: %w", err)
	}
	return nil
}

// Get retrieves a submission by id.
func (r *SubmissionRepo) Get(ctx context.Context, id string) (*domain.Submission, error) {
	query := `
		SELECT id, exam_id, student_id, question_id, answer_text, source, status, retry_count, error_msg, created_at, updated_at
		FROM submissions
		WHERE id = $1
	`
	var row submissionRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateStatus sets a submission's status and last error message.
func (r *SubmissionRepo) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMsg string) error {
	query := `
		UPDATE submissions
		SET status = $2, error_msg = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter.
func (r *SubmissionRepo) IncrementRetry(ctx context.Context, id string) error {
	query := `
		UPDATE submissions
		SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ListByStatus returns up to limit submissions in the given status,
// oldest first.
func (r *SubmissionRepo) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]*domain.Submission, error) {
	query := `
		SELECT id, exam_id, student_id, question_id, answer_text, source, status, retry_count, error_msg, created_at, updated_at
		FROM submissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var rows []submissionRow
	if err := r.db.SelectContext(ctx, &rows, query, string(status), limit); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	subs := make([]*domain.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toDomain())
	}
	return subs, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
)

// GradeRepo implements storage.GradeRepository using PostgreSQL.
type GradeRepo struct {
	db *DB
}

// NewGradeRepo creates a new PostgreSQL grade repository.
func NewGradeRepo(db *DB) *GradeRepo {
	return &GradeRepo{db: db}
}

type gradeRow struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	QuestionID   string    `db:"question_id"`
	Score        int       `db:"score"`
	Feedback     string    `db:"feedback"`
	Confidence   float64   `db:"confidence"`
	Warnings     []byte    `db:"warnings"`
	FallbackUsed bool      `db:"fallback_used"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r gradeRow) toDomain() (*domain.Grade, error) {
	g := &domain.Grade{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		QuestionID:   r.QuestionID,
		Score:        r.Score,
		Feedback:     r.Feedback,
		Confidence:   r.Confidence,
		FallbackUsed: r.FallbackUsed,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.Warnings) > 0 {
		if err := json.Unmarshal(r.Warnings, &g.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return g, nil
}

// Add inserts a grade.
func (r *GradeRepo) Add(ctx context.Context, g *domain.Grade) error {
	warnings, err := json.Marshal(g.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	query := `
		INSERT INTO grades (id, submission_id, question_id, score, feedback, confidence, warnings, fallback_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err = r.db.ExecContext(ctx, query,
		g.ID, g.SubmissionID, g.QuestionID, g.Score, g.Feedback,
		g.Confidence, warnings, g.FallbackUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to add grade: %w", err)
	}
	return nil
}

// GetBySubmission retrieves the grade for a submission.
func (r *GradeRepo) GetBySubmission(ctx context.Context, submissionID string) (*domain.Grade, error) {
	query := `
		SELECT id, submission_id, question_id, score, feedback, confidence, warnings, fallback_used, created_at
		FROM grades
		WHERE submission_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var row gradeRow
	err := r.db.GetContext(ctx, &row, query, submissionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grade: %w", err)
	}
	return row.toDomain()
}

// ListRecent returns the most recent grades, newest first.
func (r *GradeRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Grade, error) {
	query := `
		SELECT id, submission_id, question_id, score, feedback, confidence, warnings, fallback_used, created_at
		FROM grades
		ORDER BY created_at DESC
		LIMIT $1
	`
	var rows []gradeRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}

	grades := make([]*domain.Grade, 0, len(rows))
	for _, row := range rows {
		g, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, nil
}

// DeleteOlderThan removes grades created before cutoff. Returns the
// number of deleted rows.
func (r *GradeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM grades WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune grades: %w", err)
	}
	return res.RowsAffected()
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
)

// QuestionRepo implements storage.QuestionRepository using PostgreSQL.
type QuestionRepo struct {
	db *DB
}

// NewQuestionRepo creates a new PostgreSQL question repository.
func NewQuestionRepo(db *DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

type questionRow struct {
	ID          string    `db:"id"`
	ExamID      string    `db:"exam_id"`
	Number      int       `db:"number"`
	Text        string    `db:"question_text"`
	ModelAnswer string    `db:"model_answer"`
	MaxScore    int       `db:"max_score"`
	Criteria    []byte    `db:"criteria"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r questionRow) toDomain() (*domain.GuideQuestion, error) {
	q := &domain.GuideQuestion{
		ID:          r.ID,
		ExamID:      r.ExamID,
		Number:      r.Number,
		Text:        r.Text,
		ModelAnswer: r.ModelAnswer,
		MaxScore:    r.MaxScore,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Criteria) > 0 {
		if err := json.Unmarshal(r.Criteria, &q.Criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria: %w", err)
		}
	}
	return q, nil
}

// Add inserts a question.
func (r *QuestionRepo) Add(ctx context.Context, q *domain.GuideQuestion) error {
	criteria, err := json.Marshal(q.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	query := `
		INSERT INTO guide_questions (id, exam_id, number, question_text, model_answer, max_score, criteria, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err = r.db.ExecContext(ctx, query,
		q.ID, q.ExamID, q.Number, q.Text, q.ModelAnswer, q.MaxScore, criteria,
	)
	if err != nil {
		return fmt.Errorf("failed to add question: %w", err)
	}
	return nil
}

// Get retrieves a question by id.
func (r *QuestionRepo) Get(ctx context.Context, id string) (*domain.GuideQuestion, error) {
	query := `
		SELECT id, exam_id, number, question_text, model_answer, max_score, criteria, created_at
		FROM guide_questions
		WHERE id = $1
	`
	var row questionRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return row.toDomain()
}

// ListByExam returns an exam's questions ordered by number.
func (r *QuestionRepo) ListByExam(ctx context.Context, examID string) ([]*domain.GuideQuestion, error) {
	query := `
		SELECT id, exam_id, number, question_text, model_answer, max_score, criteria, created_at
		FROM guide_questions
		WHERE exam_id = $1
		ORDER BY number ASC
	`
	var rows []questionRow
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	questions := make([]*domain.GuideQuestion, 0, len(rows))
	for _, row := range rows {
		q, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

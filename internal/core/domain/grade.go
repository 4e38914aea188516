package domain

import "time"

// GuideQuestion is one question of an instructor's marking guide.
type GuideQuestion struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"exam_id"`
	Number      int       `json:"number"`
	Text        string    `json:"text"`
	ModelAnswer string    `json:"model_answer"`
	MaxScore    int       `json:"max_score"`
	Criteria    []string  `json:"criteria"`
	CreatedAt   time.Time `json:"created_at"`
}

// Grade is an accepted grading result for a submission.
type Grade struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	QuestionID   string    `json:"question_id"`
	Score        int       `json:"score"`
	Feedback     string    `json:"feedback"`
	Confidence   float64   `json:"confidence"`
	Warnings     []string  `json:"warnings"`
	FallbackUsed bool      `json:"fallback_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrorRecord is a persisted classified failure, kept for audit and
// aggregate reporting alongside the in-memory counters.
type ErrorRecord struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Operation string    `json:"operation"`
	Service   string    `json:"service"`
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

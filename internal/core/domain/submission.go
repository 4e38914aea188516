package domain

import "time"

// Submission represents an uploaded student answer awaiting grading.
type Submission struct {
	ID         string           `json:"id"`
	ExamID     string           `json:"exam_id"`
	StudentID  string           `json:"student_id"`
	QuestionID string           `json:"question_id"`
	AnswerText string           `json:"answer_text"` // extracted text, post-OCR
	Source     SubmissionSource `json:"source"`
	Status     SubmissionStatus `json:"status"`
	RetryCount int              `json:"retry_count"`
	Error      string           `json:"error_msg"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusGrading    SubmissionStatus = "grading"
	SubmissionStatusGraded     SubmissionStatus = "graded"
	SubmissionStatusFailed     SubmissionStatus = "failed"
	SubmissionStatusDeadLetter SubmissionStatus = "dead_letter"
)

type SubmissionSource string

const (
	SourceText  SubmissionSource = "text"
	SourcePDF   SubmissionSource = "pdf"
	SourceImage SubmissionSource = "image"
)

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gradewise/grader/internal/core/domain"
)

// MemoryStorage backs all repositories with in-process maps. Used in
// tests and DB-less development mode.
type MemoryStorage struct {
	mu          sync.RWMutex
	submissions map[string]*domain.Submission
	questions   map[string]*domain.GuideQuestion
	grades      map[string]*domain.Grade
	errors      []*domain.ErrorRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		submissions: make(map[string]*domain.Submission),
		questions:   make(map[string]*domain.GuideQuestion),
		grades:      make(map[string]*domain.Grade),
	}
}

// -----------------------------------------------------------------------------
// Submission Repository
// -----------------------------------------------------------------------------

type SubmissionRepo struct {
	store *MemoryStorage
}

func NewSubmissionRepo(store *MemoryStorage) *SubmissionRepo {
	return &SubmissionRepo{store: store}
}

func (r *SubmissionRepo) Add(ctx context.Context, sub *domain.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *sub
	if cp.Status == "" {
		cp.Status = domain.SubmissionStatusPending
	}
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.store.submissions[cp.ID] = &cp
	return nil
}

func (r *SubmissionRepo) Get(ctx context.Context, id string) (*domain.Submission, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sub, ok := r.store.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (r *SubmissionRepo) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sub, ok := r.store.submissions[id]
	if !ok {
		return nil
	}
	sub.Status = status
	sub.Error = errMsg
	sub.UpdatedAt = time.Now()
	return nil
}

func (r *SubmissionRepo) IncrementRetry(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if sub, ok := r.store.submissions[id]; ok {
		sub.RetryCount++
		sub.UpdatedAt = time.Now()
	}
	return nil
}

func (r *SubmissionRepo) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit int) ([]*domain.Submission, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var subs []*domain.Submission
	for _, sub := range r.store.submissions {
		if sub.Status == status {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

// -----------------------------------------------------------------------------
// Question Repository
// -----------------------------------------------------------------------------

type QuestionRepo struct {
	store *MemoryStorage
}

func NewQuestionRepo(store *MemoryStorage) *QuestionRepo {
	return &QuestionRepo{store: store}
}

func (r *QuestionRepo) Add(ctx context.Context, q *domain.GuideQuestion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *q
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.questions[cp.ID] = &cp
	return nil
}

func (r *QuestionRepo) Get(ctx context.Context, id string) (*domain.GuideQuestion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	q, ok := r.store.questions[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (r *QuestionRepo) ListByExam(ctx context.Context, examID string) ([]*domain.GuideQuestion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var questions []*domain.GuideQuestion
	for _, q := range r.store.questions {
		if q.ExamID == examID {
			cp := *q
			questions = append(questions, &cp)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })
	return questions, nil
}

// -----------------------------------------------------------------------------
// Grade Repository
// -----------------------------------------------------------------------------

type GradeRepo struct {
	store *MemoryStorage
}

func NewGradeRepo(store *MemoryStorage) *GradeRepo {
	return &GradeRepo{store: store}
}

func (r *GradeRepo) Add(ctx context.Context, g *domain.Grade) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *g
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.grades[cp.ID] = &cp
	return nil
}

func (r *GradeRepo) GetBySubmission(ctx context.Context, submissionID string) (*domain.Grade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *domain.Grade
	for _, g := range r.store.grades {
		if g.SubmissionID != submissionID {
			continue
		}
		if latest == nil || g.CreatedAt.After(latest.CreatedAt) {
			latest = g
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *GradeRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Grade, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	grades := make([]*domain.Grade, 0, len(r.store.grades))
	for _, g := range r.store.grades {
		cp := *g
		grades = append(grades, &cp)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].CreatedAt.After(grades[j].CreatedAt) })
	if limit > 0 && len(grades) > limit {
		grades = grades[:limit]
	}
	return grades, nil
}

func (r *GradeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, g := range r.store.grades {
		if g.CreatedAt.Before(cutoff) {
			delete(r.store.grades, id)
			deleted++
		}
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Error Log Repository
// -----------------------------------------------------------------------------

type ErrorLogRepo struct {
	store *MemoryStorage
}

func NewErrorLogRepo(store *MemoryStorage) *ErrorLogRepo {
	return &ErrorLogRepo{store: store}
}

func (r *ErrorLogRepo) Add(ctx context.Context, rec *domain.ErrorRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.errors = append(r.store.errors, &cp)
	return nil
}

func (r *ErrorLogRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range r.store.errors {
		counts[rec.Category]++
	}
	return counts, nil
}

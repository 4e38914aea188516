package postgres

import (
	"context"
	"fmt"

	"github.com/gradewise/grader/internal/core/domain"
)

// ErrorLogRepo implements storage.ErrorLogRepository using PostgreSQL.
type ErrorLogRepo struct {
	db *DB
}

// NewErrorLogRepo creates a new PostgreSQL error log repository.
func NewErrorLogRepo(db *DB) *ErrorLogRepo {
	return &ErrorLogRepo{db: db}
}

// Add inserts a classified error record.
func (r *ErrorLogRepo) Add(ctx context.Context, rec *domain.ErrorRecord) error {
	query := `
		INSERT INTO error_log (id, code, operation, service, severity, category, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Code, rec.Operation, rec.Service,
		rec.Severity, rec.Category, rec.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to add error record: %w", err)
	}
	return nil
}

// CountByCategory returns persisted error counts grouped by category.
func (r *ErrorLogRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	query := `SELECT category, COUNT(*) AS count FROM error_log GROUP BY category`

	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count errors: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/gradewise/grader/internal/core/config"
	"github.com/gradewise/grader/internal/infra/storage"
)

// Pruner deletes old grades based on retention policy.
type Pruner struct {
	cfg       config.RetentionConfig
	gradeRepo storage.GradeRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(cfg config.RetentionConfig, gradeRepo storage.GradeRepository) *Pruner {
	return &Pruner{
		cfg:       cfg,
		gradeRepo: gradeRepo,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.cfg.Period <= 0 {
		return // Retention disabled
	}

	interval := p.cfg.Interval
	if interval <= 0 {
		// Check at 10% of the retention period, clamped to [1m, 1h].
		interval = min(p.cfg.Period/10, 1*time.Hour)
		interval = max(interval, 1*time.Minute)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := time.Now().Add(-p.cfg.Period)

	deleted, err := p.gradeRepo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		slog.Error("failed to prune grades", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("pruned old grades", "deleted", deleted, "threshold", threshold)
	}
}

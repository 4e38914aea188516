// Package control wires the application together and manages its
// lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/gradewise/grader/internal/core/config"
	"github.com/gradewise/grader/internal/core/worker"
	"github.com/gradewise/grader/internal/grading/engine"
	"github.com/gradewise/grader/internal/grading/metrics"
	"github.com/gradewise/grader/internal/grading/validation"
	"github.com/gradewise/grader/internal/infra/llm"
	"github.com/gradewise/grader/internal/infra/ocr"
	redisclient "github.com/gradewise/grader/internal/infra/redis"
	"github.com/gradewise/grader/internal/infra/storage"
	"github.com/gradewise/grader/internal/infra/storage/memory"
	"github.com/gradewise/grader/internal/infra/storage/postgres"
	"github.com/gradewise/grader/internal/reliability/breaker"
	"github.com/gradewise/grader/internal/reliability/errclass"
	"github.com/gradewise/grader/internal/reliability/fallback"
	"github.com/gradewise/grader/internal/reliability/retry"
	"github.com/gradewise/grader/internal/serving/health"
)

// Grader is the main application struct that manages the grading
// pipeline lifecycle.
type Grader struct {
	cfg          *config.AppConfig
	engine       *engine.Engine
	worker       *engine.Worker
	pruner       *worker.Pruner
	healthServer *health.Server
	ocrProbe     *ocr.HealthProbe
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	subs      storage.SubmissionRepository
	questions storage.QuestionRepository
	grades    storage.GradeRepository
}

// New creates a Grader instance with all dependencies initialized.
// Storage is PostgreSQL when a database URL is configured, in-memory
// otherwise; the queue worker only runs when Redis is configured.
func New(cfg *config.AppConfig) (*Grader, error) {
	// 1. Initialize Storage
	var subs storage.SubmissionRepository
	var questions storage.QuestionRepository
	var grades storage.GradeRepository
	var errlog storage.ErrorLogRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the raw *sql.DB that sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		subs = postgres.NewSubmissionRepo(db)
		questions = postgres.NewQuestionRepo(db)
		grades = postgres.NewGradeRepo(db)
		errlog = postgres.NewErrorLogRepo(db)

		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		subs = memory.NewSubmissionRepo(store)
		questions = memory.NewQuestionRepo(store)
		grades = memory.NewGradeRepo(store)
		errlog = memory.NewErrorLogRepo(store)

		slog.Info("Using Memory storage")
	}

	// 2. Reliability layer
	breakers := breaker.NewRegistry(func(name string, from, to breaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	})
	handler := errclass.NewHandler(cfg.Retry.MaxAttempts)
	retries := retry.NewManager(cfg.Retry)
	fallbacks := fallback.NewManager(handler)
	validator := validation.NewService(validation.Level(cfg.Validation.Level))

	// 3. Providers
	llmClient := llm.NewClient(cfg.LLM)
	ocrClient := ocr.NewClient(cfg.OCR)

	var ocrProbe *ocr.HealthProbe
	if cfg.OCR.HealthEndpoint != "" {
		probe, err := ocr.NewHealthProbe(context.Background(), cfg.OCR.HealthEndpoint)
		if err != nil {
			slog.Warn("Failed to create OCR health probe", "error", err)
		} else {
			ocrProbe = probe
		}
	}

	// 4. Engine
	eng := engine.New(engine.Deps{
		LLM:        llmClient,
		OCR:        ocrClient,
		Breakers:   breakers,
		Retries:    retries,
		Errors:     handler,
		Fallbacks:  fallbacks,
		Validator:  validator,
		Subs:       subs,
		Grades:     grades,
		ErrLog:     errlog,
		LLMBreaker: cfg.Breakers.LLM,
		OCRBreaker: cfg.Breakers.OCR,
	})

	// 5. Redis queue worker
	var redisClient *redisclient.Client
	var qworker *engine.Worker
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, queue worker disabled", "error", err)
		} else {
			qworker = engine.NewWorker(cfg.Worker, eng, redisClient, subs, questions)
		}
	}

	// 6. Health server
	var queueStats health.QueueStats
	if redisClient != nil {
		queueStats = redisClient
	}
	var pinger health.StoragePinger
	if db != nil {
		pinger = db
	}
	healthMon := health.NewMonitor(breakers, handler, queueStats, pinger)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	// 7. Retention pruner
	var pruner *worker.Pruner
	if cfg.Retention.Period > 0 {
		pruner = worker.NewPruner(cfg.Retention, grades)
	}

	return &Grader{
		cfg:          cfg,
		engine:       eng,
		worker:       qworker,
		pruner:       pruner,
		healthServer: healthServer,
		ocrProbe:     ocrProbe,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
		subs:         subs,
		questions:    questions,
		grades:       grades,
	}, nil
}

// Engine returns the grading engine for direct (non-queued) grading.
func (g *Grader) Engine() *engine.Engine {
	return g.engine
}

// Grades returns the grade repository.
func (g *Grader) Grades() storage.GradeRepository {
	return g.grades
}

// Questions returns the guide-question repository.
func (g *Grader) Questions() storage.QuestionRepository {
	return g.questions
}

// Submissions returns the submission repository.
func (g *Grader) Submissions() storage.SubmissionRepository {
	return g.subs
}

// Enqueue pushes a submission onto the grading queue. Returns an error
// when Redis is not configured.
func (g *Grader) Enqueue(ctx context.Context, id string) error {
	if g.redisClient == nil {
		return fmt.Errorf("redis is not configured")
	}
	sub, err := g.subs.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub == nil {
		return storage.ErrNotFound
	}
	return g.redisClient.Enqueue(ctx, sub)
}

// Start starts the grader and all its background components.
func (g *Grader) Start(ctx context.Context) error {
	go func() {
		if err := g.healthServer.Start(); err != nil {
			g.log.Error("Health server failed", "error", err)
		}
	}()

	if g.db != nil {
		g.db.StartMetricsCollector(ctx)
	}

	if g.worker != nil {
		go g.worker.Start(ctx)
	}

	if g.pruner != nil {
		go g.pruner.Start(ctx)
	}

	if g.ocrProbe != nil {
		go g.runOCRProbe(ctx)
	}

	return nil
}

// Stop stops the grader.
func (g *Grader) Stop(ctx context.Context) error {
	g.log.Info("Stopping Grader...")

	if g.redisClient != nil {
		if err := g.redisClient.Close(); err != nil {
			g.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if g.ocrProbe != nil {
		if err := g.ocrProbe.Close(); err != nil {
			g.log.Warn("Failed to close OCR probe", "error", err)
		}
	}

	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.log.Warn("Failed to close database", "error", err)
		}
	}

	return g.healthServer.Stop(ctx)
}

// runOCRProbe periodically checks the OCR sidecar's gRPC health service
// so breaker recovery doesn't depend solely on live traffic.
func (g *Grader) runOCRProbe(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.ocrProbe.Check(ctx); err != nil {
				slog.Warn("OCR health probe failed", "error", err)
			} else {
				slog.Debug("OCR health probe ok")
			}
		}
	}
}

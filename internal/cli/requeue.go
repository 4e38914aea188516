package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gradewise/grader/internal/core/config"
	redisclient "github.com/gradewise/grader/internal/infra/redis"
	"github.com/gradewise/grader/internal/infra/storage/postgres"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue [submission_id]",
	Short: "Reset a failed or dead-lettered submission and put it back on the grading queue",
	Args:  cobra.ExactArgs(1),
	Run:   runRequeue,
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) {
	id := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Direct SQL is cleaner than wiring the full repo stack for a
	// one-shot override.
	query := "UPDATE submissions SET status = 'pending', retry_count = 0, error_msg = '', updated_at = now() WHERE id = $1"
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Error("Failed to reset submission", "error", err)
		os.Exit(1)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fmt.Printf("Submission %s not found\n", id)
		os.Exit(1)
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = rc.Close()
		}()

		repo := postgres.NewSubmissionRepo(db)
		sub, err := repo.Get(ctx, id)
		if err != nil || sub == nil {
			slog.Error("Failed to load submission for enqueue", "error", err)
			os.Exit(1)
		}
		if err := rc.Enqueue(ctx, sub); err != nil {
			slog.Error("Failed to enqueue submission", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Successfully requeued submission %s\n", id)
}

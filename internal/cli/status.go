package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gradewise/grader/internal/core/config"
	"github.com/gradewise/grader/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recently graded submissions",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	rows, err := db.QueryContext(ctx,
		"SELECT submission_id, score, confidence, fallback_used, created_at FROM grades ORDER BY created_at DESC LIMIT 50")
	if err != nil {
		slog.Error("Failed to query grades", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SUBMISSION\tSCORE\tCONFIDENCE\tFALLBACK\tCREATED")

	for rows.Next() {
		var submissionID string
		var score int
		var confidence float64
		var fallbackUsed bool
		var createdAt string
		if err := rows.Scan(&submissionID, &score, &confidence, &fallbackUsed, &createdAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.3f\t%t\t%s\n", submissionID, score, confidence, fallbackUsed, createdAt)
	}
	_ = w.Flush()
}

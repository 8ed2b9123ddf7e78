package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/amishk599/rankwatch/internal/config"
)

var (
	runJobID     string
	runCompanyID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze one employer and store the result under a job id",
	Long:  "One-shot run: fetches all active postings, normalizes titles, tracks positions and writes the job record. Exits 1 on failure.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "jobId", "", "job record id (required)")
	runCmd.Flags().StringVar(&runCompanyID, "companyId", "", "hh.ru employer id (required)")
	runCmd.MarkFlagRequired("jobId")
	runCmd.MarkFlagRequired("companyId")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock, err := lockJob(filepath.Join(config.DataDir(), "locks"), runJobID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("set up pipeline: %w", err)
	}
	defer a.Close()

	logger.Info("starting analysis", "job_id", runJobID, "employer_id", runCompanyID)
	postings, err := a.runner.Run(ctx, runJobID, runCompanyID)
	if err != nil {
		logger.Error("analysis failed", "job_id", runJobID, "error", err)
		return fmt.Errorf("job %s failed: %w", runJobID, err)
	}

	logger.Info("analysis complete", "job_id", runJobID, "postings", len(postings))
	return nil
}

// lockJob takes an exclusive per-job file lock so the same job id is never
// processed by two processes at once.
func lockJob(dir, jobID string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, filepath.Base(jobID)+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("job %s is already running", jobID)
	}
	return lock, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/rankwatch/internal/model"
	"github.com/amishk599/rankwatch/internal/report"
)

var (
	showJobID  string
	showFormat string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a stored job record",
	Long:  "Reads a job record from the configured store and prints it as Markdown or JSON.",
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showJobID, "jobId", "", "job record id (required)")
	showCmd.Flags().StringVar(&showFormat, "format", string(report.FormatMarkdown), "output format: md or json")
	showCmd.MarkFlagRequired("jobId")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	w, err := report.NewWriter(report.Format(showFormat), os.Stdout)
	if err != nil {
		return err
	}

	ctx := context.Background()
	jobStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	rec, err := jobStore.Get(ctx, showJobID)
	if errors.Is(err, model.ErrJobNotFound) {
		return fmt.Errorf("job %s not found", showJobID)
	}
	if err != nil {
		return fmt.Errorf("loading job %s: %w", showJobID, err)
	}
	return w.Write(rec)
}

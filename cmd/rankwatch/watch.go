package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/rankwatch/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze configured employers periodically",
	Long:  "Runs one analysis per employer in watch.companies immediately, then every watch.interval; blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Watch.Employers) == 0 {
		return errors.New("no employers to watch, set watch.companies in the config")
	}

	logger.Info("config loaded",
		"interval", cfg.Watch.Interval.String(),
		"employers", len(cfg.Watch.Employers),
		"provider", cfg.AI.Provider,
		"store", cfg.Store.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("set up pipeline: %w", err)
	}
	defer a.Close()

	opts := []scheduler.Option{scheduler.WithPause(cfg.Watch.Pause)}
	if p, ok := a.store.(scheduler.Pruner); ok && cfg.Watch.Retention > 0 {
		opts = append(opts, scheduler.WithRetention(p, cfg.Watch.Retention))
	}

	sched := scheduler.NewScheduler(a.runner, cfg.Watch.Employers, cfg.Watch.Interval, logger, opts...)
	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	logger.Info("goodbye")
	return nil
}

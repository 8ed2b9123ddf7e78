package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/rankwatch/internal/model"
)

// DefaultPause is the gap between employers within one cycle.
const DefaultPause = time.Second

// Runner runs one analysis job. *pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context, jobID, employerID string) ([]model.Posting, error)
}

// Pruner deletes finished job records older than a retention window.
type Pruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler owns the watch loop: ticks on an interval and analyzes each
// employer sequentially under a fresh job id.
type Scheduler struct {
	runner    Runner
	employers []string
	interval  time.Duration
	pause     time.Duration
	pruner    Pruner
	retention time.Duration
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPause sets the gap between employers. Zero disables it.
func WithPause(d time.Duration) Option {
	return func(s *Scheduler) { s.pause = d }
}

// WithRetention prunes finished records older than d after every cycle.
func WithRetention(p Pruner, d time.Duration) Option {
	return func(s *Scheduler) {
		s.pruner = p
		s.retention = d
	}
}

// WithIDGenerator replaces the job id generator (uuid v4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) { s.newID = fn }
}

// NewScheduler creates a scheduler that analyzes all employers at the given interval.
func NewScheduler(runner Runner, employers []string, interval time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		employers: employers,
		interval:  interval,
		pause:     DefaultPause,
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the watch loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"employers", len(s.employers),
	)

	// Run one immediate cycle.
	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runAll(ctx)
		}
	}
}

// runAll analyzes each employer sequentially with a small pause between them.
func (s *Scheduler) runAll(ctx context.Context) {
	for i, employer := range s.employers {
		if ctx.Err() != nil {
			return
		}

		jobID := s.newID()
		postings, err := s.runner.Run(ctx, jobID, employer)
		if err != nil {
			s.logger.Error("analysis failed",
				"employer_id", employer,
				"job_id", jobID,
				"error", err,
			)
		} else {
			s.logger.Info("analysis finished",
				"employer_id", employer,
				"job_id", jobID,
				"postings", len(postings),
			)
		}

		// Small sleep between employers to be polite, except after the last one.
		if i < len(s.employers)-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pause):
			}
		}
	}

	s.prune(ctx)
}

func (s *Scheduler) prune(ctx context.Context) {
	if s.pruner == nil || s.retention <= 0 || ctx.Err() != nil {
		return
	}
	n, err := s.pruner.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.Warn("pruning old job records failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned old job records", "deleted", n, "retention", s.retention.String())
	}
}

// Package pipeline runs one employer analysis end to end and records the
// job's status transitions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
)

// Outcome is the terminal result of a run as reported to an Observer.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Observer receives one call per finished run.
type Observer interface {
	ObserveRun(outcome Outcome, postings int, elapsed time.Duration)
}

// Runner sequences fetch, normalize and track for one employer and persists
// the job record: processing first, then exactly one of completed or failed.
type Runner struct {
	source     model.PostingSource
	normalizer model.TitleNormalizer
	tracker    model.PositionTracker
	store      model.JobStore
	observer   Observer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver reports run outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClock replaces time.Now for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner wired with all its dependencies.
func NewRunner(
	source model.PostingSource,
	normalizer model.TitleNormalizer,
	tracker model.PositionTracker,
	store model.JobStore,
	logger *slog.Logger,
	opts ...Option,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		source:     source,
		normalizer: normalizer,
		tracker:    tracker,
		store:      store,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run analyzes every active posting of employerID under jobID and returns the
// annotated postings. On any pipeline-fatal error the job is marked failed with
// the error message and the error is returned.
func (r *Runner) Run(ctx context.Context, jobID, employerID string) ([]model.Posting, error) {
	start := r.now()
	logger := r.logger.With("job_id", jobID, "employer_id", employerID)

	var postings []model.Posting
	err := r.store.MarkProcessing(ctx, jobID, employerID)
	if err != nil {
		err = fmt.Errorf("mark job %s processing: %w", jobID, err)
	} else {
		logger.Info("analysis started")
		postings, err = r.analyze(ctx, employerID)
	}
	if err == nil {
		if err = r.store.Complete(context.WithoutCancel(ctx), jobID, postings, r.now()); err != nil {
			err = fmt.Errorf("mark job %s completed: %w", jobID, err)
		}
	}
	if err != nil {
		logger.Error("analysis failed", "error", err)
		if ferr := r.store.Fail(context.WithoutCancel(ctx), jobID, err.Error(), r.now()); ferr != nil {
			logger.Error("failed to record job failure", "error", ferr)
		}
		r.observe(OutcomeFailed, len(postings), start)
		return nil, err
	}

	logger.Info("analysis completed", "postings", len(postings), "elapsed", r.now().Sub(start))
	r.observe(OutcomeCompleted, len(postings), start)
	return postings, nil
}

func (r *Runner) analyze(ctx context.Context, employerID string) ([]model.Posting, error) {
	postings, err := r.source.FetchAllPostings(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		r.logger.Info("employer has no active postings", "employer_id", employerID)
		return []model.Posting{}, nil
	}

	if err := r.normalizer.Normalize(ctx, postings); err != nil {
		return nil, err
	}
	return r.tracker.Track(ctx, postings), nil
}

func (r *Runner) observe(outcome Outcome, postings int, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveRun(outcome, postings, r.now().Sub(start))
	}
}

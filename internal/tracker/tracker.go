// Package tracker estimates where each posting ranks in a relevance-ordered
// search for its own normalized title, and how many postings compete with it.
//
// Postings that would issue the same query are grouped so each distinct query
// runs exactly once; its answer is fanned back out to every member.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/rankwatch/internal/hh"
	"github.com/amishk599/rankwatch/internal/model"
)

// DefaultPacing is the pause between consecutive group searches.
const DefaultPacing = 500 * time.Millisecond

// Searcher runs one relevance-ordered search. *hh.Client implements it.
type Searcher interface {
	Search(ctx context.Context, q hh.SearchQuery) (*hh.SearchResult, error)
}

// Observer receives the outcome of every group search.
type Observer interface {
	ObserveGroup(succeeded bool, members int)
}

// Tracker annotates postings with Position and CompetitorsCount.
type Tracker struct {
	searcher Searcher
	pacing   time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
	logger   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPacing sets the pause between group searches. Zero disables pacing.
func WithPacing(d time.Duration) Option {
	return func(t *Tracker) { t.pacing = d }
}

// WithSleep replaces the function used to wait between groups.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Tracker) { t.sleep = fn }
}

// WithObserver reports group outcomes to o.
func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observer = o }
}

// New creates a Tracker backed by searcher.
func New(searcher Searcher, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		searcher: searcher,
		pacing:   DefaultPacing,
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track searches once per group, sequentially, and writes the result into
// every member. A failed search marks its members SearchFailed with zero
// competitors and does not affect other groups. Postings without a normalized
// title are left untouched. Track modifies postings in place and returns it.
func (t *Tracker) Track(ctx context.Context, postings []model.Posting) []model.Posting {
	groups := GroupPostings(postings)
	t.logger.Info("tracking positions", "postings", len(postings), "groups", len(groups))

	failed := 0
	for i, g := range groups {
		if !t.trackGroup(ctx, postings, g) {
			failed++
		}
		if i < len(groups)-1 && t.pacing > 0 {
			if err := t.sleep(ctx, t.pacing); err != nil {
				t.logger.Debug("pacing interrupted", "error", err)
			}
		}
	}

	t.logger.Info("tracked positions", "groups", len(groups), "failed_groups", failed)
	return postings
}

func (t *Tracker) trackGroup(ctx context.Context, postings []model.Posting, g Group) bool {
	rep := postings[g.Members[0]]
	q := hh.SearchQuery{Text: rep.NormalizedTitle, AreaID: rep.AreaID, ScheduleID: rep.ScheduleID}

	res, err := t.searcher.Search(ctx, q)
	if err != nil {
		t.logger.Error("group search failed",
			"group", g.Key.Title,
			"area_id", g.Key.AreaID,
			"schedule_id", g.Key.ScheduleID,
			"members", len(g.Members),
			"error", err,
		)
		for _, idx := range g.Members {
			postings[idx].Position = model.SearchFailed()
			postings[idx].CompetitorsCount = intPtr(0)
		}
		t.observe(false, len(g.Members))
		return false
	}

	// Only the first page of results is visible; anything past it is outside the window.
	visible := res.IDs[:min(len(res.IDs), hh.PageSize)]
	rankByID := make(map[int64]int, len(visible))
	for i, id := range visible {
		if id == 0 {
			continue
		}
		if _, seen := rankByID[id]; !seen {
			rankByID[id] = i + 1
		}
	}

	for _, idx := range g.Members {
		p := &postings[idx]
		if rank, ok := rankByID[p.ID]; ok {
			p.Position = model.Ranked(rank)
		} else {
			p.Position = model.OutsideWindow()
		}
		p.CompetitorsCount = intPtr(res.Found)
	}

	t.logger.Debug("group tracked",
		"group", g.Key.Title,
		"area_id", g.Key.AreaID,
		"members", len(g.Members),
		"found", res.Found,
	)
	t.observe(true, len(g.Members))
	return true
}

func (t *Tracker) observe(succeeded bool, members int) {
	if t.observer != nil {
		t.observer.ObserveGroup(succeeded, members)
	}
}

func intPtr(v int) *int { return &v }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

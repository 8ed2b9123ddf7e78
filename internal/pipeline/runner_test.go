package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore keeps every status transition in order.
type recordingStore struct {
	transitions []model.JobStatus
	postings    []model.Posting
	message     string
	completedAt time.Time

	markErr     error
	completeErr error
}

func (s *recordingStore) MarkProcessing(_ context.Context, _, _ string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.transitions = append(s.transitions, model.StatusProcessing)
	return nil
}

func (s *recordingStore) Complete(_ context.Context, _ string, postings []model.Posting, at time.Time) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.transitions = append(s.transitions, model.StatusCompleted)
	s.postings = postings
	s.completedAt = at
	return nil
}

func (s *recordingStore) Fail(_ context.Context, _, message string, at time.Time) error {
	s.transitions = append(s.transitions, model.StatusFailed)
	s.message = message
	s.completedAt = at
	return nil
}

func (s *recordingStore) Get(context.Context, string) (*model.JobRecord, error) {
	return nil, model.ErrJobNotFound
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) terminalCount() int {
	n := 0
	for _, st := range s.transitions {
		if st == model.StatusCompleted || st == model.StatusFailed {
			n++
		}
	}
	return n
}

type fakeSource struct {
	postings []model.Posting
	err      error
}

func (f *fakeSource) FetchAllPostings(context.Context, string) ([]model.Posting, error) {
	return f.postings, f.err
}

type fakeNormalizer struct {
	err    error
	called bool
}

func (f *fakeNormalizer) Normalize(_ context.Context, postings []model.Posting) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	for i := range postings {
		postings[i].NormalizedTitle = postings[i].RawTitle
	}
	return nil
}

type fakeTracker struct {
	called bool
}

func (f *fakeTracker) Track(_ context.Context, postings []model.Posting) []model.Posting {
	f.called = true
	for i := range postings {
		postings[i].Position = model.Ranked(i + 1)
	}
	return postings
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRunner(src *fakeSource, norm *fakeNormalizer, tr *fakeTracker, store *recordingStore) *Runner {
	return NewRunner(src, norm, tr, store, discardLogger(), WithClock(func() time.Time { return fixedNow }))
}

func TestRun_CompletesWithAnnotatedPostings(t *testing.T) {
	src := &fakeSource{postings: []model.Posting{{ID: 1, RawTitle: "Токарь"}, {ID: 2, RawTitle: "Бухгалтер"}}}
	store := &recordingStore{}

	got, err := newTestRunner(src, &fakeNormalizer{}, &fakeTracker{}, store).Run(context.Background(), "job-1", "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].Position != model.Ranked(2) || got[0].NormalizedTitle != "Токарь" {
		t.Errorf("unexpected postings: %+v", got)
	}
	want := []model.JobStatus{model.StatusProcessing, model.StatusCompleted}
	if len(store.transitions) != 2 || store.transitions[0] != want[0] || store.transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", store.transitions, want)
	}
	if len(store.postings) != 2 {
		t.Errorf("persisted %d postings, want 2", len(store.postings))
	}
	if !store.completedAt.Equal(fixedNow) {
		t.Errorf("completedAt = %v, want %v", store.completedAt, fixedNow)
	}
}

func TestRun_NoPostingsCompletesEmpty(t *testing.T) {
	store := &recordingStore{}
	norm, tr := &fakeNormalizer{}, &fakeTracker{}

	got, err := newTestRunner(&fakeSource{}, norm, tr, store).Run(context.Background(), "job-1", "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("postings = %v, want empty non-nil slice", got)
	}
	if norm.called || tr.called {
		t.Error("normalizer and tracker must not run without postings")
	}
	if store.terminalCount() != 1 || store.transitions[len(store.transitions)-1] != model.StatusCompleted {
		t.Errorf("transitions = %v, want completed once", store.transitions)
	}
}

func TestRun_FetchFailureMarksFailed(t *testing.T) {
	fetchErr := &model.FetchError{URL: "https://api.hh.ru/vacancies", Attempts: 5, StatusCode: 503}
	store := &recordingStore{}
	tr := &fakeTracker{}

	_, err := newTestRunner(&fakeSource{err: fetchErr}, &fakeNormalizer{}, tr, store).Run(context.Background(), "job-1", "1740")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if store.terminalCount() != 1 || store.transitions[1] != model.StatusFailed {
		t.Errorf("transitions = %v, want processing then failed", store.transitions)
	}
	if store.message != err.Error() {
		t.Errorf("stored message = %q, want %q", store.message, err.Error())
	}
	if tr.called {
		t.Error("tracker must not run after a fetch failure")
	}
}

func TestRun_NormalizerFailureMarksFailed(t *testing.T) {
	src := &fakeSource{postings: []model.Posting{{ID: 1, RawTitle: "Токарь"}}}
	store := &recordingStore{}
	tr := &fakeTracker{}
	normErr := errors.Join(model.ErrNormalization, errors.New("no JSON array in response"))

	_, err := newTestRunner(src, &fakeNormalizer{err: normErr}, tr, store).Run(context.Background(), "job-1", "1740")
	if !errors.Is(err, model.ErrNormalization) {
		t.Fatalf("expected ErrNormalization, got %v", err)
	}
	if tr.called {
		t.Error("tracker must not run after a normalizer failure")
	}
	if store.terminalCount() != 1 || store.transitions[1] != model.StatusFailed {
		t.Errorf("transitions = %v, want processing then failed", store.transitions)
	}
}

func TestRun_CompleteFailureMarksFailed(t *testing.T) {
	src := &fakeSource{postings: []model.Posting{{ID: 1, RawTitle: "Токарь"}}}
	store := &recordingStore{completeErr: errors.New("disk full")}

	_, err := newTestRunner(src, &fakeNormalizer{}, &fakeTracker{}, store).Run(context.Background(), "job-1", "1740")
	if err == nil {
		t.Fatal("expected error when completion cannot be recorded")
	}
	if store.terminalCount() != 1 || store.transitions[len(store.transitions)-1] != model.StatusFailed {
		t.Errorf("transitions = %v, want a single failed", store.transitions)
	}
}

func TestRun_MarkProcessingFailureStillRecordsFailure(t *testing.T) {
	store := &recordingStore{markErr: errors.New("connection refused")}
	src := &fakeSource{postings: []model.Posting{{ID: 1}}}
	norm := &fakeNormalizer{}

	_, err := newTestRunner(src, norm, &fakeTracker{}, store).Run(context.Background(), "job-1", "1740")
	if err == nil {
		t.Fatal("expected error")
	}
	if norm.called {
		t.Error("pipeline must not proceed when the job cannot be marked processing")
	}
	if len(store.transitions) != 1 || store.transitions[0] != model.StatusFailed {
		t.Errorf("transitions = %v, want [failed]", store.transitions)
	}
}

// runCounter records ObserveRun calls.
type runCounter struct {
	outcomes []Outcome
	postings int
}

func (r *runCounter) ObserveRun(outcome Outcome, postings int, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
	r.postings += postings
}

func TestRun_ReportsOutcomeToObserver(t *testing.T) {
	obs := &runCounter{}
	src := &fakeSource{postings: []model.Posting{{ID: 1, RawTitle: "a"}, {ID: 2, RawTitle: "b"}}}
	r := NewRunner(src, &fakeNormalizer{}, &fakeTracker{}, &recordingStore{}, discardLogger(), WithObserver(obs))

	if _, err := r.Run(context.Background(), "job-1", "1740"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failing := NewRunner(&fakeSource{err: errors.New("boom")}, &fakeNormalizer{}, &fakeTracker{}, &recordingStore{}, discardLogger(), WithObserver(obs))
	if _, err := failing.Run(context.Background(), "job-2", "1740"); err == nil {
		t.Fatal("expected error")
	}

	if len(obs.outcomes) != 2 || obs.outcomes[0] != OutcomeCompleted || obs.outcomes[1] != OutcomeFailed {
		t.Errorf("outcomes = %v, want [completed failed]", obs.outcomes)
	}
	if obs.postings != 2 {
		t.Errorf("postings = %d, want 2", obs.postings)
	}
}

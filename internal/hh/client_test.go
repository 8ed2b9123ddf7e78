package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
	"github.com/amishk599/rankwatch/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

func makeItems(startID, n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		id := startID + i
		items[i] = map[string]any{
			"id":            strconv.Itoa(id),
			"name":          fmt.Sprintf("Vacancy %d", id),
			"area":          map[string]any{"id": "1", "name": "Москва"},
			"schedule":      map[string]any{"id": "fullDay"},
			"alternate_url": fmt.Sprintf("https://hh.ru/vacancy/%d", id),
			"published_at":  "2025-06-01T10:00:00+0300",
		}
	}
	return items
}

// pagedServer serves the given page sizes with the given reported page count.
func pagedServer(t *testing.T, reportedPages int, sizes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/vacancies" {
			t.Errorf("path = %s, want /vacancies", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("employer_id") != "1740" || q.Get("per_page") != "100" || q.Get("archived") != "false" {
			t.Errorf("unexpected query: %v", q)
		}
		page, _ := strconv.Atoi(q.Get("page"))

		var items []map[string]any
		if page < len(sizes) {
			start := 1
			for _, s := range sizes[:page] {
				start += s
			}
			items = makeItems(start, sizes[page])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"items": items,
			"found": 0,
			"pages": reportedPages,
			"page":  page,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(srv *httptest.Server) *Client {
	fetcher := retry.NewFetcher(srv.Client(), discardLogger(), retry.WithSleep(noSleep))
	return NewClient(fetcher, srv.URL, "rankwatch-test", discardLogger())
}

func TestFetchAllPostings_StopsOnReportedPageCount(t *testing.T) {
	srv, calls := pagedServer(t, 3, 100, 100, 37)

	postings, err := newTestClient(srv).FetchAllPostings(context.Background(), "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3", calls.Load())
	}
	if len(postings) != 237 {
		t.Fatalf("postings = %d, want 237", len(postings))
	}
	for i, p := range postings {
		if p.ID != int64(i+1) {
			t.Fatalf("posting %d has id %d, want %d (order not preserved)", i, p.ID, i+1)
		}
	}
}

func TestFetchAllPostings_EmptyFirstPage(t *testing.T) {
	srv, calls := pagedServer(t, 0)

	postings, err := newTestClient(srv).FetchAllPostings(context.Background(), "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}
	if len(postings) != 0 {
		t.Errorf("postings = %d, want 0", len(postings))
	}
}

func TestFetchAllPostings_StopsOnEmptyPageBeforeReportedCount(t *testing.T) {
	// Server claims 5 pages but runs out after 2.
	srv, calls := pagedServer(t, 5, 100, 20)

	postings, err := newTestClient(srv).FetchAllPostings(context.Background(), "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3 (two full pages + one empty)", calls.Load())
	}
	if len(postings) != 120 {
		t.Errorf("postings = %d, want 120", len(postings))
	}
}

func TestFetchAllPostings_MapsFields(t *testing.T) {
	srv, _ := pagedServer(t, 1, 1)

	postings, err := newTestClient(srv).FetchAllPostings(context.Background(), "1740")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := postings[0]
	if p.ID != 1 || p.RawTitle != "Vacancy 1" || p.AreaID != 1 || p.AreaName != "Москва" || p.ScheduleID != "fullDay" {
		t.Errorf("unexpected posting: %+v", p)
	}
	if p.URL != "https://hh.ru/vacancy/1" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.PublishedAt == nil || p.PublishedAt.UTC().Hour() != 7 {
		t.Errorf("PublishedAt = %v, want 07:00 UTC", p.PublishedAt)
	}
	if p.IsNormalized() || p.Position.Kind != model.PositionUnset || p.CompetitorsCount != nil {
		t.Errorf("fresh posting should be unannotated: %+v", p)
	}
}

// scriptedDoer returns canned responses in order, then errors.
type scriptedDoer struct {
	bodies []string
	err    error
	calls  int
}

func (d *scriptedDoer) Do(_ context.Context, _ retry.RequestSpec) (*retry.Response, error) {
	d.calls++
	if d.calls <= len(d.bodies) {
		return &retry.Response{StatusCode: http.StatusOK, Body: []byte(d.bodies[d.calls-1])}, nil
	}
	return nil, d.err
}

func TestFetchAllPostings_FailureAbortsWithoutPartialResult(t *testing.T) {
	page0, _ := json.Marshal(map[string]any{"items": makeItems(1, 100), "pages": 3})
	doer := &scriptedDoer{
		bodies: []string{string(page0)},
		err:    &model.FetchError{Attempts: 5, StatusCode: 503, Err: &model.HTTPError{StatusCode: 503}},
	}
	client := NewClient(doer, "http://hh.test", "", discardLogger())

	postings, err := client.FetchAllPostings(context.Background(), "1740")
	if err == nil {
		t.Fatal("expected error")
	}
	if postings != nil {
		t.Errorf("expected no partial result, got %d postings", len(postings))
	}
	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Attempts != 5 {
		t.Errorf("expected wrapped FetchError, got %v", err)
	}
	if doer.calls != 2 {
		t.Errorf("calls = %d, want 2", doer.calls)
	}
}

func TestFetchAllPostings_BadIDIsFatal(t *testing.T) {
	doer := &scriptedDoer{bodies: []string{`{"items":[{"id":"abc","name":"x","area":{"id":"1"}}],"pages":1}`}}
	client := NewClient(doer, "http://hh.test", "", discardLogger())

	if _, err := client.FetchAllPostings(context.Background(), "1740"); err == nil {
		t.Fatal("expected error for unparseable vacancy id")
	}
}

func TestSearch_SendsQueryAndKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("text") != "Бухгалтер" || q.Get("area") != "2" || q.Get("schedule") != "remote" ||
			q.Get("order_by") != "relevance" || q.Get("per_page") != "100" {
			t.Errorf("unexpected query: %v", q)
		}
		if r.Header.Get("User-Agent") != "rankwatch-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"found": 5120, "items": [{"id":"30"},{"id":"oops"},{"id":"10"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Search(context.Background(), SearchQuery{Text: "Бухгалтер", AreaID: 2, ScheduleID: "remote"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Found != 5120 {
		t.Errorf("Found = %d, want 5120", res.Found)
	}
	want := []int64{30, 0, 10}
	if len(res.IDs) != len(want) {
		t.Fatalf("IDs = %v, want %v", res.IDs, want)
	}
	for i := range want {
		if res.IDs[i] != want[i] {
			t.Errorf("IDs = %v, want %v", res.IDs, want)
			break
		}
	}
}

func TestSearch_PropagatesFetchError(t *testing.T) {
	doer := &scriptedDoer{err: &model.FetchError{Attempts: 1, StatusCode: 400, Err: &model.HTTPError{StatusCode: 400}}}
	client := NewClient(doer, "http://hh.test", "", discardLogger())

	if _, err := client.Search(context.Background(), SearchQuery{Text: "Токарь", AreaID: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_OmitsEmptySchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if _, ok := q["schedule"]; ok {
			t.Errorf("schedule should be omitted, query: %v", q)
		}
		if q.Get("text") != "Токарь" || q.Get("area") != "1" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Write([]byte(`{"found": 0, "items": []}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).Search(context.Background(), SearchQuery{Text: "Токарь", AreaID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

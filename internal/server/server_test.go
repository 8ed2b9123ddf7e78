package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/rankwatch/internal/model"
)

type fakeAnalyzer struct {
	postings []model.Posting
	err      error

	jobID, employerID string
}

func (f *fakeAnalyzer) Run(_ context.Context, jobID, employerID string) ([]model.Posting, error) {
	f.jobID, f.employerID = jobID, employerID
	return f.postings, f.err
}

type fakeJobs map[string]*model.JobRecord

func (f fakeJobs) Get(_ context.Context, id string) (*model.JobRecord, error) {
	if rec, ok := f[id]; ok {
		return rec, nil
	}
	return nil, model.ErrJobNotFound
}

func newTestServer(a Analyzer, jobs JobReader) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(a, jobs, prometheus.NewRegistry(), logger, WithIDGenerator(func() string { return "job-fixed" }))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func intPtr(v int) *int { return &v }

func TestAnalyze_Success(t *testing.T) {
	a := &fakeAnalyzer{postings: []model.Posting{
		{ID: 1, RawTitle: "Токарь", NormalizedTitle: "Токарь", Position: model.Ranked(1), CompetitorsCount: intPtr(40)},
		{ID: 2, RawTitle: "Бухгалтер", NormalizedTitle: "Бухгалтер", Position: model.OutsideWindow(), CompetitorsCount: intPtr(900)},
	}}
	s := newTestServer(a, fakeJobs{})

	rec := do(t, s, http.MethodPost, "/analyze-company", `{"companyId": "1740"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		JobID          string            `json:"jobId"`
		CompanyID      string            `json:"companyId"`
		TotalVacancies int               `json:"totalVacancies"`
		Vacancies      []json.RawMessage `json:"vacancies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-fixed", body.JobID)
	assert.Equal(t, "1740", body.CompanyID)
	assert.Equal(t, 2, body.TotalVacancies)
	assert.Len(t, body.Vacancies, 2)
	assert.Contains(t, rec.Body.String(), `"position":"not_in_top_100"`)

	assert.Equal(t, "job-fixed", a.jobID)
	assert.Equal(t, "1740", a.employerID)
}

func TestAnalyze_NumericCompanyID(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestServer(a, fakeJobs{})

	rec := do(t, s, http.MethodPost, "/analyze-company", `{"companyId": 1740}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1740", a.employerID)
}

func TestAnalyze_NoPostings(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{postings: []model.Posting{}}, fakeJobs{})

	rec := do(t, s, http.MethodPost, "/analyze-company", `{"companyId": "1740"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), noPostingsMessage)
	assert.Contains(t, rec.Body.String(), `"vacancies":[]`)
}

func TestAnalyze_MissingCompanyID(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestServer(a, fakeJobs{})

	for _, body := range []string{`{}`, `{"companyId": ""}`, `{"companyId": null}`, `not json`} {
		rec := do(t, s, http.MethodPost, "/analyze-company", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	assert.Empty(t, a.jobID, "analyzer must not run on a bad request")
}

func TestAnalyze_PipelineFailure(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{err: errors.New("fetch postings: HTTP 404")}, fakeJobs{})

	rec := do(t, s, http.MethodPost, "/analyze-company", `{"companyId": "1740"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, "fetch postings: HTTP 404", body.Details)
}

func TestGetJob(t *testing.T) {
	jobs := fakeJobs{"job-1": {ID: "job-1", EmployerID: "1740", Status: model.StatusCompleted}}
	s := newTestServer(&fakeAnalyzer{}, jobs)

	rec := do(t, s, http.MethodGet, "/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	rec = do(t, s, http.MethodGet, "/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{}, fakeJobs{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

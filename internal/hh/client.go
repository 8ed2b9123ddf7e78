// Package hh talks to the hh.ru vacancies API: it walks every active posting
// of an employer and runs relevance-ordered searches for the position tracker.
package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/rankwatch/internal/retry"
)

const (
	DefaultBaseURL   = "https://api.hh.ru"
	DefaultUserAgent = "rankwatch/1.0"

	// PageSize is the per_page value used for listing and search requests.
	PageSize = 100
)

// Doer performs one logical request, retries included.
// *retry.Fetcher implements it.
type Doer interface {
	Do(ctx context.Context, spec retry.RequestSpec) (*retry.Response, error)
}

// Client is an hh.ru API client.
type Client struct {
	doer      Doer
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a client. Empty baseURL and userAgent fall back to the defaults.
func NewClient(doer Doer, baseURL, userAgent string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		doer:      doer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
	}
}

// vacancyItem is a single vacancy in a listing or search response.
type vacancyItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Area         vacancyArea  `json:"area"`
	Schedule     *vacancyEnum `json:"schedule"`
	AlternateURL string       `json:"alternate_url"`
	PublishedAt  string       `json:"published_at"`
}

type vacancyArea struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type vacancyEnum struct {
	ID string `json:"id"`
}

// vacanciesResponse is the top-level /vacancies response.
type vacanciesResponse struct {
	Items   []vacancyItem `json:"items"`
	Found   int           `json:"found"`
	Pages   int           `json:"pages"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

func (c *Client) vacancies(ctx context.Context, query map[string]string) (*vacanciesResponse, error) {
	spec := retry.RequestSpec{
		Method: http.MethodGet,
		URL:    c.baseURL + "/vacancies",
		Query:  make(url.Values, len(query)),
		Header: http.Header{"User-Agent": {c.userAgent}},
	}
	for k, v := range query {
		spec.Query.Set(k, v)
	}

	resp, err := c.doer.Do(ctx, spec)
	if err != nil {
		return nil, err
	}

	var out vacanciesResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode vacancies response: %w", err)
	}
	return &out, nil
}

// parsePublishedAt accepts hh's "2006-01-02T15:04:05-0700" and RFC 3339.
// Returns nil if absent or unparseable.
func parsePublishedAt(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func parseID(kind, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s id %q: %w", kind, value, err)
	}
	return id, nil
}

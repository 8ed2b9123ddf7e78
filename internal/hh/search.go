package hh

import (
	"context"
	"fmt"
	"strconv"
)

// SearchQuery parametrizes one relevance-ordered search.
type SearchQuery struct {
	Text       string
	AreaID     int
	ScheduleID string
}

// SearchResult holds the total match count and the ids of the visible results
// in relevance order. An id that could not be parsed is kept as 0 so the
// indices of the others stay correct.
type SearchResult struct {
	Found int
	IDs   []int64
}

// Search runs a relevance-ordered vacancy search returning at most PageSize ids.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	params := map[string]string{
		"text":     q.Text,
		"area":     strconv.Itoa(q.AreaID),
		"order_by": "relevance",
		"per_page": strconv.Itoa(PageSize),
	}
	// An empty schedule is not a valid dictionary value, so it is left out.
	if q.ScheduleID != "" {
		params["schedule"] = q.ScheduleID
	}

	resp, err := c.vacancies(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	result := &SearchResult{Found: resp.Found, IDs: make([]int64, 0, len(resp.Items))}
	for _, item := range resp.Items {
		id, err := parseID("vacancy", item.ID)
		if err != nil {
			c.logger.Warn("skipping search item with bad id", "text", q.Text, "error", err)
		}
		result.IDs = append(result.IDs, id)
	}
	return result, nil
}

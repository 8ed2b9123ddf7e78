// Package store persists analysis job records.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
)

// TableName is the table every SQL backend writes job records to.
const TableName = "live_analysis_jobs"

// timeLayout is fixed width so stored UTC timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

// encodePostings returns the result_data payload for postings.
// A nil slice is stored as an empty list.
func encodePostings(postings []model.Posting) ([]byte, error) {
	if postings == nil {
		postings = []model.Posting{}
	}
	data, err := json.Marshal(postings)
	if err != nil {
		return nil, fmt.Errorf("encoding result data: %w", err)
	}
	return data, nil
}

func decodePostings(data []byte) ([]model.Posting, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var postings []model.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("decoding result data: %w", err)
	}
	return postings, nil
}

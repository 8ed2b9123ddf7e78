package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Posting is one hh.ru vacancy under analysis.
type Posting struct {
	ID               int64      `json:"hh_vacancy_id"`
	RawTitle         string     `json:"raw_title"`
	NormalizedTitle  string     `json:"normalized_title"` // empty until the normalizer sets it
	AreaName         string     `json:"area_name"`
	AreaID           int        `json:"area_id"`
	ScheduleID       string     `json:"schedule_id"`
	URL              string     `json:"url"`
	Position         Position   `json:"position"`
	CompetitorsCount *int       `json:"competitors_count"` // nil until tracked
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// IsNormalized reports whether the posting has a normalized title and can be
// grouped for a position search.
func (p Posting) IsNormalized() bool {
	return p.NormalizedTitle != ""
}

// PositionKind distinguishes the states a tracked position can be in.
type PositionKind int

const (
	// PositionUnset means the posting was never searched.
	PositionUnset PositionKind = iota
	// PositionRanked carries a 1-based rank within the observed window.
	PositionRanked
	// PositionOutsideWindow means the posting was not among the top results.
	PositionOutsideWindow
	// PositionSearchFailed means the group's search query failed.
	PositionSearchFailed
)

const (
	outsideWindowLabel = "not_in_top_100"
	searchFailedLabel  = "search_failed"
)

// Position is the result of the position tracker for one posting.
// Rank is meaningful only when Kind is PositionRanked.
type Position struct {
	Kind PositionKind
	Rank int
}

// Ranked returns a ranked position.
func Ranked(rank int) Position { return Position{Kind: PositionRanked, Rank: rank} }

// OutsideWindow returns the "not in the observed window" position.
func OutsideWindow() Position { return Position{Kind: PositionOutsideWindow} }

// SearchFailed returns the "group search failed" position.
func SearchFailed() Position { return Position{Kind: PositionSearchFailed} }

func (p Position) String() string {
	switch p.Kind {
	case PositionRanked:
		return strconv.Itoa(p.Rank)
	case PositionOutsideWindow:
		return outsideWindowLabel
	case PositionSearchFailed:
		return searchFailedLabel
	default:
		return "unset"
	}
}

// MarshalJSON encodes a ranked position as a number, the two sentinels as
// strings and an unset position as null.
func (p Position) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PositionRanked:
		return []byte(strconv.Itoa(p.Rank)), nil
	case PositionOutsideWindow:
		return json.Marshal(outsideWindowLabel)
	case PositionSearchFailed:
		return json.Marshal(searchFailedLabel)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Position) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Position{}
		return nil
	}

	var rank int
	if err := json.Unmarshal(data, &rank); err == nil {
		*p = Ranked(rank)
		return nil
	}

	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("decode position %s: %w", data, err)
	}
	switch label {
	case outsideWindowLabel:
		*p = OutsideWindow()
	case searchFailedLabel:
		*p = SearchFailed()
	default:
		return fmt.Errorf("unknown position %q", label)
	}
	return nil
}

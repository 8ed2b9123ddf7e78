// Package report renders analysis job records for people (Markdown) and tools
// (JSON).
package report

import "github.com/amishk599/rankwatch/internal/model"

// Summary counts postings by tracking outcome.
type Summary struct {
	Total         int
	Ranked        int
	TopTen        int
	OutsideWindow int
	SearchFailed  int
	NotSearched   int
}

// Summarize tallies the postings of a job record. Postings without a position
// (no normalized title) count as not searched.
func Summarize(postings []model.Posting) Summary {
	s := Summary{Total: len(postings)}
	for _, p := range postings {
		switch p.Position.Kind {
		case model.PositionRanked:
			s.Ranked++
			if p.Position.Rank <= 10 {
				s.TopTen++
			}
		case model.PositionOutsideWindow:
			s.OutsideWindow++
		case model.PositionSearchFailed:
			s.SearchFailed++
		default:
			s.NotSearched++
		}
	}
	return s
}

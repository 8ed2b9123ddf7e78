package tracker

import "github.com/amishk599/rankwatch/internal/model"

// GroupKey identifies postings that share one search. Fields compare exactly.
type GroupKey struct {
	Title      string
	AreaID     int
	ScheduleID string
}

// Group is a set of postings answered by a single search.
// Members are indices into the slice passed to GroupPostings, in input order;
// the first member is the representative whose fields build the query.
type Group struct {
	Key     GroupKey
	Members []int
}

// GroupPostings partitions normalized postings by (normalized title, area,
// schedule). Groups come out in order of first appearance; postings without a
// normalized title belong to no group.
func GroupPostings(postings []model.Posting) []Group {
	var groups []Group
	index := make(map[GroupKey]int)

	for i, p := range postings {
		if !p.IsNormalized() {
			continue
		}
		key := GroupKey{Title: p.NormalizedTitle, AreaID: p.AreaID, ScheduleID: p.ScheduleID}
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, Group{Key: key})
		}
		groups[g].Members = append(groups[g].Members, i)
	}
	return groups
}

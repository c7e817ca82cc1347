package processor

import (
	"sort"

	"fundingwatch/internal/model"
)

// DefaultTopN is the number of records selected at each end of a group.
const DefaultTopN = 3

// Group holds the selections for one exchange. Negative is ascending by
// rate; Positive is descending. For groups smaller than 2*topN the two may
// share records.
type Group struct {
	Exchange model.Exchange
	Negative []model.FundingRecord
	Positive []model.FundingRecord
}

// Empty reports whether the group has nothing to report.
func (g Group) Empty() bool {
	return len(g.Negative) == 0 && len(g.Positive) == 0
}

// Without returns a copy of the group minus the records for which drop
// returns true.
func (g Group) Without(drop func(model.FundingRecord) bool) Group {
	return Group{
		Exchange: g.Exchange,
		Negative: keep(g.Negative, drop),
		Positive: keep(g.Positive, drop),
	}
}

// Records returns every distinct record of the group, negative side first.
func (g Group) Records() []model.FundingRecord {
	seen := make(map[string]struct{}, len(g.Negative)+len(g.Positive))
	out := make([]model.FundingRecord, 0, len(g.Negative)+len(g.Positive))
	for _, list := range [][]model.FundingRecord{g.Negative, g.Positive} {
		for _, r := range list {
			if _, ok := seen[r.Key()]; ok {
				continue
			}
			seen[r.Key()] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func keep(in []model.FundingRecord, drop func(model.FundingRecord) bool) []model.FundingRecord {
	out := make([]model.FundingRecord, 0, len(in))
	for _, r := range in {
		if !drop(r) {
			out = append(out, r)
		}
	}
	return out
}

// Rank groups records by exchange in first-seen order and selects the topN
// lowest and topN highest rates of each group. Ties keep input order.
func Rank(records []model.FundingRecord, topN int) []Group {
	if topN <= 0 {
		topN = DefaultTopN
	}

	var order []model.Exchange
	byExchange := make(map[model.Exchange][]model.FundingRecord)
	for _, r := range records {
		ex := r.Exchange()
		if _, ok := byExchange[ex]; !ok {
			order = append(order, ex)
		}
		byExchange[ex] = append(byExchange[ex], r)
	}

	groups := make([]Group, 0, len(order))
	for _, ex := range order {
		items := append([]model.FundingRecord(nil), byExchange[ex]...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].Rate() < items[j].Rate() })

		n := topN
		if n > len(items) {
			n = len(items)
		}
		neg := append([]model.FundingRecord(nil), items[:n]...)
		pos := make([]model.FundingRecord, 0, n)
		for i := len(items) - 1; i >= len(items)-n; i-- {
			pos = append(pos, items[i])
		}

		g := Group{Exchange: ex, Negative: neg, Positive: pos}
		if g.Empty() {
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

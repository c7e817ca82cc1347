package processor

import "fundingwatch/internal/model"

// Outcome is the result of one adapter call within a cycle.
type Outcome struct {
	Exchange model.Exchange
	Records  []model.FundingRecord
	Err      error
}

// Aggregate concatenates the records of every successful outcome in the
// order given. Failed outcomes contribute nothing.
func Aggregate(outcomes []Outcome) []model.FundingRecord {
	total := 0
	for _, o := range outcomes {
		if o.Err == nil {
			total += len(o.Records)
		}
	}

	out := make([]model.FundingRecord, 0, total)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		out = append(out, o.Records...)
	}
	return out
}

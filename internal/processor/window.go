package processor

import (
	"strings"
	"time"

	"fundingwatch/internal/model"
	"fundingwatch/internal/symbols"
)

// DefaultWindow is the lookahead used when none is configured.
const DefaultWindow = 45 * time.Minute

// FilterWindow keeps records settling in [now, now+window], both ends
// inclusive. Input order is preserved.
func FilterWindow(records []model.FundingRecord, now time.Time, window time.Duration) []model.FundingRecord {
	end := now.Add(window)
	out := make([]model.FundingRecord, 0, len(records))
	for _, r := range records {
		t := r.NextFundingTime()
		if t.Before(now) || t.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterWatchlist keeps records whose symbol, normalised to the BTCUSDT form,
// is listed. An empty watchlist keeps everything.
func FilterWatchlist(records []model.FundingRecord, watchlist []string) []model.FundingRecord {
	if len(watchlist) == 0 {
		return records
	}
	allowed := make(map[string]struct{}, len(watchlist))
	for _, s := range watchlist {
		allowed[symbols.ToBinance("", strings.TrimSpace(s))] = struct{}{}
	}

	out := make([]model.FundingRecord, 0, len(records))
	for _, r := range records {
		if _, ok := allowed[symbols.ToBinance(string(r.Exchange()), r.Symbol())]; ok {
			out = append(out, r)
		}
	}
	return out
}

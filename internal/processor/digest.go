package processor

import (
	"fmt"
	"html"
	"strings"
	"time"

	"fundingwatch/internal/model"
)

const (
	negativeMarker = "🔻"
	positiveMarker = "🟢"
)

// Format renders one group as an HTML digest. An empty group renders as "".
func Format(g Group, window time.Duration) string {
	if g.Empty() {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s - Upcoming Funding (within %s)</b>\n", html.EscapeString(g.Exchange.DisplayName()), windowLabel(window))
	for _, r := range g.Negative {
		writeLine(&b, negativeMarker, r)
	}
	for _, r := range g.Positive {
		writeLine(&b, positiveMarker, r)
	}
	return b.String()
}

func writeLine(b *strings.Builder, marker string, r model.FundingRecord) {
	fmt.Fprintf(b, "%s <code>%s</code>: %s\n", marker, html.EscapeString(r.Symbol()), FormatRate(r.Rate()))
}

// FormatRate renders a fractional rate as a percentage with four decimals.
// Tiny negative rates keep their sign ("-0.0000%").
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.4f%%", rate*100)
}

func windowLabel(window time.Duration) string {
	if window%time.Minute == 0 {
		return fmt.Sprintf("%d min", int64(window/time.Minute))
	}
	return window.String()
}

// Messages formats each non-empty group in order.
func Messages(groups []Group, window time.Duration) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if msg := Format(g, window); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// RankAndFormat ranks window-filtered records and returns one digest per
// exchange in first-seen order.
func RankAndFormat(records []model.FundingRecord, topN int, window time.Duration) []string {
	return Messages(Rank(records, topN), window)
}

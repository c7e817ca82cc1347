package processor

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"fundingwatch/internal/model"
)

var t0 = time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)

func rec(t *testing.T, ex model.Exchange, sym string, rate float64, next time.Time) model.FundingRecord {
	t.Helper()
	r, err := model.NewFundingRecord(ex, sym, rate, next)
	if err != nil {
		t.Fatalf("NewFundingRecord: %v", err)
	}
	return r
}

func rates(records []model.FundingRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Rate())
	}
	return out
}

func TestRankSelectsThreePerSide(t *testing.T) {
	next := t0.Add(30 * time.Minute)
	var in []model.FundingRecord
	for i, r := range []float64{0.003, -0.001, 0.006, -0.002, 0.0005, 0.004} {
		in = append(in, rec(t, model.ExchangeBinance, fmt.Sprintf("S%dUSDT", i), r, next))
	}

	groups := Rank(FilterWindow(in, t0, DefaultWindow), 3)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got, want := rates(groups[0].Negative), []float64{-0.002, -0.001, 0.0005}; !reflect.DeepEqual(got, want) {
		t.Fatalf("negative = %v, want %v", got, want)
	}
	if got, want := rates(groups[0].Positive), []float64{0.006, 0.004, 0.003}; !reflect.DeepEqual(got, want) {
		t.Fatalf("positive = %v, want %v", got, want)
	}
}

func TestRankSmallGroupOverlapsSides(t *testing.T) {
	next := t0.Add(10 * time.Minute)
	in := []model.FundingRecord{
		rec(t, model.ExchangeOKX, "BTC-USD-SWAP", 0.0001, next),
		rec(t, model.ExchangeOKX, "ETH-USD-SWAP", -0.0004, next),
	}
	groups := Rank(in, 3)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if got := rates(g.Negative); !reflect.DeepEqual(got, []float64{-0.0004, 0.0001}) {
		t.Fatalf("negative = %v", got)
	}
	if got := rates(g.Positive); !reflect.DeepEqual(got, []float64{0.0001, -0.0004}) {
		t.Fatalf("positive = %v", got)
	}
	if n := len(g.Records()); n != 2 {
		t.Fatalf("expected 2 distinct records, got %d", n)
	}
	msg := Format(g, DefaultWindow)
	if strings.Count(msg, "BTC-USD-SWAP") != 2 || strings.Count(msg, "ETH-USD-SWAP") != 2 {
		t.Fatalf("overlap not rendered twice:\n%s", msg)
	}
}

func TestRecordOutsideWindowProducesNoDigest(t *testing.T) {
	in := []model.FundingRecord{rec(t, model.ExchangeBybit, "BTCUSDT", 0.001, t0.Add(50*time.Minute))}
	if out := FilterWindow(in, t0, 45*time.Minute); len(out) != 0 {
		t.Fatalf("expected record excluded, got %v", out)
	}
	if msgs := RankAndFormat(FilterWindow(in, t0, 45*time.Minute), 3, 45*time.Minute); len(msgs) != 0 {
		t.Fatalf("expected no messages, got %v", msgs)
	}
}

func TestFailedExchangeContributesNothing(t *testing.T) {
	next := t0.Add(5 * time.Minute)
	outcomes := []Outcome{
		{Exchange: model.ExchangeBinance, Err: &model.FetchError{Exchange: model.ExchangeBinance, Err: errors.New("timeout")}},
		{Exchange: model.ExchangeOKX, Records: []model.FundingRecord{rec(t, model.ExchangeOKX, "BTC-USD-SWAP", 0.0001, next)}},
		{Exchange: model.ExchangeBybit, Records: []model.FundingRecord{
			rec(t, model.ExchangeBybit, "BTCUSDT", -0.0002, next),
			rec(t, model.ExchangeBybit, "ETHUSDT", 0.0003, next),
		}},
	}

	all := Aggregate(outcomes)
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].Exchange() != model.ExchangeOKX || all[2].Symbol() != "ETHUSDT" {
		t.Fatalf("aggregate order wrong: %v", all)
	}

	msgs := RankAndFormat(FilterWindow(all, t0, DefaultWindow), 3, DefaultWindow)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 digests, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[0], "<b>OKX - ") || !strings.HasPrefix(msgs[1], "<b>Bybit - ") {
		t.Fatalf("unexpected digests %q", msgs)
	}
	for _, m := range msgs {
		if strings.Contains(m, "Binance") {
			t.Fatalf("failed exchange leaked into digests: %q", m)
		}
	}
}

func TestFilterWindowBoundaries(t *testing.T) {
	w := 45 * time.Minute
	in := []model.FundingRecord{
		rec(t, model.ExchangeBinance, "PAST", 0.1, t0.Add(-time.Second)),
		rec(t, model.ExchangeBinance, "NOW", 0.1, t0),
		rec(t, model.ExchangeBinance, "END", 0.1, t0.Add(w)),
		rec(t, model.ExchangeBinance, "LATE", 0.1, t0.Add(w+time.Millisecond)),
	}
	var got []string
	for _, r := range FilterWindow(in, t0, w) {
		got = append(got, r.Symbol())
	}
	if !reflect.DeepEqual(got, []string{"NOW", "END"}) {
		t.Fatalf("unexpected window result %v", got)
	}
}

func TestFilterWindowProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := 45 * time.Minute
	var in []model.FundingRecord
	for i := 0; i < 500; i++ {
		offset := time.Duration(rng.Int63n(int64(3*time.Hour))) - time.Hour
		in = append(in, rec(t, model.ExchangeMEXC, fmt.Sprintf("S%d", i), rng.Float64()-0.5, t0.Add(offset)))
	}
	out := FilterWindow(in, t0, w)
	kept := make(map[string]bool, len(out))
	for _, r := range out {
		kept[r.Symbol()] = true
	}
	for _, r := range in {
		inside := !r.NextFundingTime().Before(t0) && !r.NextFundingTime().After(t0.Add(w))
		if inside != kept[r.Symbol()] {
			t.Fatalf("record %s: inside=%v kept=%v", r, inside, kept[r.Symbol()])
		}
	}
}

func TestRankProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	exchanges := []model.Exchange{model.ExchangeBinance, model.ExchangeOKX, model.ExchangeBybit, model.ExchangeMEXC}
	for round := 0; round < 50; round++ {
		var in []model.FundingRecord
		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			ex := exchanges[rng.Intn(len(exchanges))]
			in = append(in, rec(t, ex, fmt.Sprintf("S%d", i), rng.Float64()-0.5, t0))
		}
		for _, g := range Rank(in, 3) {
			if len(g.Negative) > 3 || len(g.Positive) > 3 {
				t.Fatalf("selection too large: %d/%d", len(g.Negative), len(g.Positive))
			}
			for i := 1; i < len(g.Negative); i++ {
				if g.Negative[i-1].Rate() > g.Negative[i].Rate() {
					t.Fatalf("negative not ascending: %v", rates(g.Negative))
				}
			}
			for i := 1; i < len(g.Positive); i++ {
				if g.Positive[i-1].Rate() < g.Positive[i].Rate() {
					t.Fatalf("positive not descending: %v", rates(g.Positive))
				}
			}
		}
	}
}

func TestRankFirstSeenExchangeOrder(t *testing.T) {
	in := []model.FundingRecord{
		rec(t, model.ExchangeMEXC, "A_USDT", 0.1, t0),
		rec(t, model.ExchangeBinance, "BUSDT", 0.1, t0),
		rec(t, model.ExchangeMEXC, "C_USDT", -0.1, t0),
	}
	groups := Rank(in, 3)
	if len(groups) != 2 || groups[0].Exchange != model.ExchangeMEXC || groups[1].Exchange != model.ExchangeBinance {
		t.Fatalf("unexpected group order %+v", groups)
	}
}

func TestRankTopN(t *testing.T) {
	var in []model.FundingRecord
	for i := 0; i < 10; i++ {
		in = append(in, rec(t, model.ExchangeBybit, fmt.Sprintf("S%d", i), float64(i), t0))
	}
	g := Rank(in, 5)[0]
	if len(g.Negative) != 5 || len(g.Positive) != 5 {
		t.Fatalf("unexpected sizes %d/%d", len(g.Negative), len(g.Positive))
	}
	if g := Rank(in, 0)[0]; len(g.Negative) != DefaultTopN {
		t.Fatalf("default topN not applied: %d", len(g.Negative))
	}
}

func TestRankAndFormatIdempotent(t *testing.T) {
	in := []model.FundingRecord{
		rec(t, model.ExchangeBinance, "BTCUSDT", -0.002, t0),
		rec(t, model.ExchangeBinance, "ETHUSDT", 0.006, t0),
		rec(t, model.ExchangeBinance, "XRPUSDT", 0.006, t0),
		rec(t, model.ExchangeOKX, "BTC-USD-SWAP", 0.0001, t0),
	}
	first := RankAndFormat(in, 3, DefaultWindow)
	second := RankAndFormat(in, 3, DefaultWindow)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not idempotent:\n%q\n%q", first, second)
	}
}

func TestFormatDigest(t *testing.T) {
	g := Group{
		Exchange: model.ExchangeBinance,
		Negative: []model.FundingRecord{rec(t, model.ExchangeBinance, "BTCUSDT", -0.002, t0)},
		Positive: []model.FundingRecord{rec(t, model.ExchangeBinance, "A<B>USDT", 0.006, t0)},
	}
	want := "<b>Binance - Upcoming Funding (within 45 min)</b>\n" +
		"🔻 <code>BTCUSDT</code>: -0.2000%\n" +
		"🟢 <code>A&lt;B&gt;USDT</code>: 0.6000%\n"
	if got := Format(g, 45*time.Minute); got != want {
		t.Fatalf("digest mismatch:\n%s\nwant:\n%s", got, want)
	}
	if got := Format(Group{Exchange: model.ExchangeBinance}, DefaultWindow); got != "" {
		t.Fatalf("empty group rendered %q", got)
	}
}

func TestFormatRate(t *testing.T) {
	cases := map[float64]string{
		0.0001:     "0.0100%",
		-0.00375:   "-0.3750%",
		0:          "0.0000%",
		-0.0000001: "-0.0000%",
		0.0000001:  "0.0000%",
	}
	for in, want := range cases {
		if got := FormatRate(in); got != want {
			t.Errorf("FormatRate(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestGroupWithout(t *testing.T) {
	a := rec(t, model.ExchangeBybit, "AUSDT", -0.1, t0)
	b := rec(t, model.ExchangeBybit, "BUSDT", 0.1, t0)
	g := Rank([]model.FundingRecord{a, b}, 3)[0]
	g = g.Without(func(r model.FundingRecord) bool { return r.Key() == a.Key() })
	if len(g.Negative) != 1 || len(g.Positive) != 1 || g.Negative[0].Key() != b.Key() {
		t.Fatalf("unexpected group after Without: %+v", g)
	}
	g = g.Without(func(model.FundingRecord) bool { return true })
	if !g.Empty() {
		t.Fatal("expected empty group")
	}
}

func TestFilterWatchlist(t *testing.T) {
	in := []model.FundingRecord{
		rec(t, model.ExchangeBinance, "BTCUSDT", 0.1, t0),
		rec(t, model.ExchangeMEXC, "BTC_USDT", 0.1, t0),
		rec(t, model.ExchangeOKX, "ETH-USDT-SWAP", 0.1, t0),
		rec(t, model.ExchangeBybit, "SOLUSDT", 0.1, t0),
	}
	if got := FilterWatchlist(in, nil); len(got) != 4 {
		t.Fatalf("empty watchlist should keep all, got %d", len(got))
	}
	got := FilterWatchlist(in, []string{"btc/usdt", "ETH-USDT"})
	if len(got) != 3 || got[2].Exchange() != model.ExchangeOKX {
		t.Fatalf("unexpected watchlist result %v", got)
	}
}

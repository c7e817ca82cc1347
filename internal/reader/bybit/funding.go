package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	appconfig "fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/internal/reader"
	"fundingwatch/logger"

	bybit "github.com/bybit-exchange/bybit.go.api"
)

const (
	defaultBaseURL  = "https://api.bybit.com"
	defaultCategory = "linear"
	defaultQuote    = "USDT"
)

type tickerList struct {
	Category string   `json:"category"`
	List     []ticker `json:"list"`
}

type ticker struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// FundingReader reads funding rates from the v5 market tickers endpoint.
// Each ticker carries its own settlement; the fixed 8 hour schedule is used
// only when that field is missing or unreadable.
type FundingReader struct {
	client   *bybit.Client
	category string
	quote    string
	log      *logger.Log
}

func NewFundingReader(cfg *appconfig.Config) *FundingReader {
	src := cfg.Source.Bybit

	base := strings.TrimSpace(src.URL)
	if base == "" {
		base = defaultBaseURL
	}
	if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
		base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	category := src.Category
	if category == "" {
		category = defaultCategory
	}
	quote := strings.ToUpper(src.Quote)
	if quote == "" {
		quote = defaultQuote
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = reader.NewHTTPClient(cfg.Reader)

	return &FundingReader{
		client:   client,
		category: category,
		quote:    quote,
		log:      logger.GetLogger(),
	}
}

func (r *FundingReader) Exchange() model.Exchange { return model.ExchangeBybit }

func (r *FundingReader) Fetch(ctx context.Context, now time.Time) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("bybit_reader").WithFields(logger.Fields{"operation": "fetch_funding"})

	params := map[string]interface{}{"category": r.category}

	start := time.Now()
	resp, err := r.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeBybit, Op: "market tickers", Err: err}
	}
	logger.LogPerformanceEntry(log, "bybit_reader", "api_request", time.Since(start), logger.Fields{"category": r.category})

	if resp.RetCode != 0 {
		return nil, &model.FetchError{
			Exchange: model.ExchangeBybit,
			Op:       "market tickers",
			Err:      fmt.Errorf("retCode %d: %s", resp.RetCode, resp.RetMsg),
		}
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeBybit, Op: "market tickers", Err: err}
	}
	var list tickerList
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeBybit, Op: "market tickers", Err: err}
	}

	scheduled := reader.NextScheduledSettlement(now)
	records := make([]model.FundingRecord, 0, len(list.List))
	for _, t := range list.List {
		if !strings.Contains(t.Symbol, r.quote) {
			continue
		}
		rate, err := reader.ParseRate(t.FundingRate)
		if err != nil {
			log.WithError(&model.RecordParseError{Exchange: model.ExchangeBybit, Symbol: t.Symbol, Err: err}).Debug("skipping ticker")
			continue
		}
		next, err := reader.ParseTimestamp(t.NextFundingTime)
		if err != nil {
			next = scheduled
		}
		rec, err := model.NewFundingRecord(model.ExchangeBybit, t.Symbol, rate, next)
		if err != nil {
			log.WithError(&model.RecordParseError{Exchange: model.ExchangeBybit, Symbol: t.Symbol, Err: err}).Debug("skipping ticker")
			continue
		}
		records = append(records, rec)
	}

	log.WithFields(logger.Fields{"records": len(records), "tickers": len(list.List)}).Debug("bybit funding fetched")
	return records, nil
}

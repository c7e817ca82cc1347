package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	appconfig "fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/internal/reader"
	"fundingwatch/logger"

	futures "github.com/adshao/go-binance/v2/futures"
)

const (
	defaultBaseURL = "https://fapi.binance.com"
	defaultLimit   = 100
)

// FundingReader reads the latest settled funding entries from the Binance
// USDⓈ-M futures funding history and projects the next settlement one
// period ahead.
type FundingReader struct {
	client *futures.Client
	limit  int
	log    *logger.Log
}

// NewFundingReader builds a reader from the binance source section.
func NewFundingReader(cfg *appconfig.Config) *FundingReader {
	src := cfg.Source.Binance

	base := strings.TrimRight(strings.TrimSpace(src.URL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	limit := src.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	client := futures.NewClient("", "")
	client.BaseURL = base
	client.HTTPClient = reader.NewHTTPClient(cfg.Reader)

	return &FundingReader{
		client: client,
		limit:  limit,
		log:    logger.GetLogger(),
	}
}

func (r *FundingReader) Exchange() model.Exchange { return model.ExchangeBinance }

// Fetch returns one record per symbol, built from the most recent history
// entry for that symbol.
func (r *FundingReader) Fetch(ctx context.Context, _ time.Time) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{"operation": "fetch_funding"})

	start := time.Now()
	entries, err := r.client.NewFundingRateService().Limit(r.limit).Do(ctx)
	if err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeBinance, Op: "funding rate history", Err: err}
	}
	logger.LogPerformanceEntry(log, "binance_reader", "api_request", time.Since(start), logger.Fields{"entries": len(entries)})

	latest := make(map[string]*futures.FundingRate, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.Symbol == "" {
			continue
		}
		prev, seen := latest[e.Symbol]
		if !seen {
			order = append(order, e.Symbol)
		}
		if !seen || e.FundingTime >= prev.FundingTime {
			latest[e.Symbol] = e
		}
	}

	records := make([]model.FundingRecord, 0, len(order))
	for _, sym := range order {
		rec, err := toRecord(latest[sym])
		if err != nil {
			log.WithError(err).Warn("skipping malformed funding entry")
			continue
		}
		records = append(records, rec)
	}

	log.WithFields(logger.Fields{"records": len(records)}).Debug("binance funding fetched")
	return records, nil
}

func toRecord(e *futures.FundingRate) (model.FundingRecord, error) {
	rate, err := reader.ParseRate(e.FundingRate)
	if err != nil {
		return model.FundingRecord{}, &model.RecordParseError{Exchange: model.ExchangeBinance, Symbol: e.Symbol, Err: err}
	}
	if e.FundingTime <= 0 {
		return model.FundingRecord{}, &model.RecordParseError{
			Exchange: model.ExchangeBinance,
			Symbol:   e.Symbol,
			Err:      fmt.Errorf("missing fundingTime"),
		}
	}
	next := time.UnixMilli(e.FundingTime).UTC().Add(reader.SettlementInterval)
	rec, err := model.NewFundingRecord(model.ExchangeBinance, e.Symbol, rate, next)
	if err != nil {
		return model.FundingRecord{}, &model.RecordParseError{Exchange: model.ExchangeBinance, Symbol: e.Symbol, Err: err}
	}
	return rec, nil
}

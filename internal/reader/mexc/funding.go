package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appconfig "fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/internal/reader"
	"fundingwatch/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://contract.mexc.com"
	contractDetailPath = "/api/v1/contract/detail"
	fundingRatePath    = "/api/v1/contract/funding_rate/"
	defaultConcurrency = 4
)

type contractDetailResponse struct {
	Success bool `json:"success"`
	Code    int  `json:"code"`
	Data    []struct {
		Symbol string `json:"symbol"`
	} `json:"data"`
}

type fundingRateResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    fundingRateData `json:"data"`
}

type fundingRateData struct {
	Symbol          string      `json:"symbol"`
	FundingRate     json.Number `json:"fundingRate"`
	NextSettleTime  json.Number `json:"nextSettleTime"`
	NextFundingTime json.Number `json:"nextFundingTime"`
}

// FundingReader lists MEXC perpetual contracts and then fetches the funding
// rate of each one with bounded concurrency.
type FundingReader struct {
	client      *http.Client
	limiter     *rate.Limiter
	baseURL     string
	maxSymbols  int
	concurrency int
	log         *logger.Log
}

func NewFundingReader(cfg *appconfig.Config) *FundingReader {
	src := cfg.Source.Mexc

	base := strings.TrimRight(strings.TrimSpace(src.URL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	concurrency := src.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &FundingReader{
		client:      reader.NewHTTPClient(cfg.Reader),
		limiter:     reader.NewLimiter(cfg.Reader.RateLimit),
		baseURL:     base,
		maxSymbols:  src.MaxSymbols,
		concurrency: concurrency,
		log:         logger.GetLogger(),
	}
}

func (r *FundingReader) Exchange() model.Exchange { return model.ExchangeMEXC }

func (r *FundingReader) Fetch(ctx context.Context, _ time.Time) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("mexc_reader").WithFields(logger.Fields{"operation": "fetch_funding"})

	symbols, err := r.listSymbols(ctx)
	if err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeMEXC, Op: "contract detail", Err: err}
	}
	if r.maxSymbols > 0 && len(symbols) > r.maxSymbols {
		log.WithFields(logger.Fields{"contracts": len(symbols), "max_symbols": r.maxSymbols}).Debug("capping contract list")
		symbols = symbols[:r.maxSymbols]
	}

	results := make([]*model.FundingRecord, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			rec, err := r.fetchSymbol(gctx, sym)
			if err != nil {
				if reader.IsUnavailable(err) {
					return err
				}
				log.WithFields(logger.Fields{"symbol": sym}).WithError(err).Debug("skipping contract")
				return nil
			}
			results[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &model.FetchError{Exchange: model.ExchangeMEXC, Op: "funding rate", Err: err}
	}

	records := make([]model.FundingRecord, 0, len(symbols))
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	log.WithFields(logger.Fields{"records": len(records), "contracts": len(symbols)}).Debug("mexc funding fetched")
	return records, nil
}

func (r *FundingReader) listSymbols(ctx context.Context) ([]string, error) {
	var body contractDetailResponse
	if err := reader.GetJSON(ctx, r.client, r.limiter, r.baseURL+contractDetailPath, &body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, fmt.Errorf("contract detail returned code %d", body.Code)
	}

	symbols := make([]string, 0, len(body.Data))
	for _, c := range body.Data {
		if c.Symbol != "" {
			symbols = append(symbols, c.Symbol)
		}
	}
	return symbols, nil
}

func (r *FundingReader) fetchSymbol(ctx context.Context, symbol string) (model.FundingRecord, error) {
	var body fundingRateResponse
	endpoint := r.baseURL + fundingRatePath + url.PathEscape(symbol)
	if err := reader.GetJSON(ctx, r.client, r.limiter, endpoint, &body); err != nil {
		if reader.IsUnavailable(err) {
			return model.FundingRecord{}, err
		}
		return model.FundingRecord{}, &model.RecordParseError{Exchange: model.ExchangeMEXC, Symbol: symbol, Err: err}
	}
	return toRecord(symbol, body)
}

func toRecord(symbol string, body fundingRateResponse) (model.FundingRecord, error) {
	fail := func(err error) (model.FundingRecord, error) {
		return model.FundingRecord{}, &model.RecordParseError{Exchange: model.ExchangeMEXC, Symbol: symbol, Err: err}
	}

	if !body.Success {
		return fail(fmt.Errorf("api code %d", body.Code))
	}
	rate, err := reader.ParseRate(body.Data.FundingRate.String())
	if err != nil {
		return fail(err)
	}

	raw := body.Data.NextSettleTime.String()
	if raw == "" {
		raw = body.Data.NextFundingTime.String()
	}
	next, err := reader.ParseTimestamp(raw)
	if err != nil {
		return fail(err)
	}

	if body.Data.Symbol != "" {
		symbol = body.Data.Symbol
	}
	rec, err := model.NewFundingRecord(model.ExchangeMEXC, symbol, rate, next)
	if err != nil {
		return fail(err)
	}
	return rec, nil
}

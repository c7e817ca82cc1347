package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appconfig "fundingwatch/config"
	"fundingwatch/internal/model"
	"fundingwatch/internal/reader"
	"fundingwatch/logger"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://www.okx.com"
	fundingRatePath   = "/api/v5/public/funding-rate"
	defaultInstrument = "BTC-USD-SWAP"
)

type fundingRateResponse struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []fundingRateData `json:"data"`
}

type fundingRateData struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
}

// FundingReader queries the public funding-rate endpoint once per configured
// instrument.
type FundingReader struct {
	client      *http.Client
	limiter     *rate.Limiter
	baseURL     string
	instruments []string
	log         *logger.Log
}

func NewFundingReader(cfg *appconfig.Config) *FundingReader {
	src := cfg.Source.Okx

	base := strings.TrimRight(strings.TrimSpace(src.URL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	instruments := src.Instruments
	if len(instruments) == 0 {
		instruments = []string{defaultInstrument}
	}

	return &FundingReader{
		client:      reader.NewHTTPClient(cfg.Reader),
		limiter:     reader.NewLimiter(cfg.Reader.RateLimit),
		baseURL:     base,
		instruments: instruments,
		log:         logger.GetLogger(),
	}
}

func (r *FundingReader) Exchange() model.Exchange { return model.ExchangeOKX }

// Fetch requests instruments sequentially. A network failure, 5xx or 429
// aborts the whole fetch; an error payload for one instrument only drops that
// instrument.
func (r *FundingReader) Fetch(ctx context.Context, _ time.Time) ([]model.FundingRecord, error) {
	log := r.log.WithComponent("okx_reader").WithFields(logger.Fields{"operation": "fetch_funding"})

	records := make([]model.FundingRecord, 0, len(r.instruments))
	for _, inst := range r.instruments {
		endpoint := fmt.Sprintf("%s%s?instId=%s", r.baseURL, fundingRatePath, url.QueryEscape(inst))

		var body fundingRateResponse
		if err := reader.GetJSON(ctx, r.client, r.limiter, endpoint, &body); err != nil {
			if reader.IsUnavailable(err) {
				return nil, &model.FetchError{Exchange: model.ExchangeOKX, Op: "funding rate " + inst, Err: err}
			}
			log.WithFields(logger.Fields{"instrument": inst}).WithError(err).Warn("skipping instrument")
			continue
		}

		recs, err := parseResponse(inst, body)
		if err != nil {
			log.WithFields(logger.Fields{"instrument": inst}).WithError(err).Warn("skipping instrument")
			continue
		}
		records = append(records, recs...)
	}

	log.WithFields(logger.Fields{"records": len(records)}).Debug("okx funding fetched")
	return records, nil
}

func parseResponse(inst string, body fundingRateResponse) ([]model.FundingRecord, error) {
	if body.Code != "0" {
		return nil, &model.RecordParseError{
			Exchange: model.ExchangeOKX,
			Symbol:   inst,
			Err:      fmt.Errorf("api code %s: %s", body.Code, body.Msg),
		}
	}
	if len(body.Data) == 0 {
		return nil, &model.RecordParseError{Exchange: model.ExchangeOKX, Symbol: inst, Err: fmt.Errorf("empty data")}
	}

	out := make([]model.FundingRecord, 0, len(body.Data))
	for _, d := range body.Data {
		symbol := d.InstID
		if symbol == "" {
			symbol = inst
		}
		rec, err := toRecord(symbol, d)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(symbol string, d fundingRateData) (model.FundingRecord, error) {
	fail := func(err error) (model.FundingRecord, error) {
		return model.FundingRecord{}, &model.RecordParseError{Exchange: model.ExchangeOKX, Symbol: symbol, Err: err}
	}

	rate, err := reader.ParseRate(d.FundingRate)
	if err != nil {
		return fail(err)
	}

	raw := d.FundingTime
	if strings.TrimSpace(raw) == "" {
		raw = d.NextFundingTime
	}
	next, err := reader.ParseTimestamp(raw)
	if err != nil {
		return fail(err)
	}

	rec, err := model.NewFundingRecord(model.ExchangeOKX, symbol, rate, next)
	if err != nil {
		return fail(err)
	}
	return rec, nil
}

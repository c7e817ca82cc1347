package bybit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "fundingwatch/config"
	"fundingwatch/internal/model"
)

func testConfig(url string) *appconfig.Config {
	cfg := appconfig.Default()
	cfg.Reader.Timeout = time.Second
	cfg.Source.Bybit.URL = url
	return &cfg
}

func TestFetchFiltersQuote(t *testing.T) {
	var gotCategory string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			http.NotFound(w, r)
			return
		}
		gotCategory = r.URL.Query().Get("category")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
			{"symbol":"BTCUSDT","fundingRate":"-0.0005","nextFundingTime":"1714550400000"},
			{"symbol":"BTCPERP","fundingRate":"0.0001","nextFundingTime":"1714550400000"},
			{"symbol":"ETHUSDT","fundingRate":"","nextFundingTime":"1714550400000"},
			{"symbol":"SOLUSDT","fundingRate":"0.0007","nextFundingTime":"1714550400000"}
		]},"retExtInfo":{},"time":1714548000000}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 7, 20, 0, 0, time.UTC)
	records, err := NewFundingReader(testConfig(srv.URL)).Fetch(context.Background(), now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotCategory != "linear" {
		t.Fatalf("category not sent: %q", gotCategory)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", records)
	}
	want := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, rec := range records {
		if !rec.NextFundingTime().Equal(want) {
			t.Fatalf("%s next funding %s, want %s", rec.Symbol(), rec.NextFundingTime(), want)
		}
	}
	if records[0].Symbol() != "BTCUSDT" || records[1].Symbol() != "SOLUSDT" {
		t.Fatalf("unexpected records %v", records)
	}
}

func TestFetchUsesTickerSettlement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
			{"symbol":"FOURHUSDT","fundingRate":"0.0009","nextFundingTime":"1714536000000"},
			{"symbol":"NOTIMEUSDT","fundingRate":"0.0001","nextFundingTime":""},
			{"symbol":"BADTIMEUSDT","fundingRate":"0.0002","nextFundingTime":"soon"}
		]},"retExtInfo":{},"time":1714534200000}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 3, 30, 0, 0, time.UTC)
	records, err := NewFundingReader(testConfig(srv.URL)).Fetch(context.Background(), now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %v", records)
	}

	// 4h contract settles at 04:00, not at the 08:00 schedule boundary
	if want := time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC); !records[0].NextFundingTime().Equal(want) {
		t.Fatalf("FOURHUSDT next funding %s, want %s", records[0].NextFundingTime(), want)
	}
	scheduled := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, rec := range records[1:] {
		if !rec.NextFundingTime().Equal(scheduled) {
			t.Fatalf("%s next funding %s, want schedule fallback %s", rec.Symbol(), rec.NextFundingTime(), scheduled)
		}
	}
}

func TestFetchRetCodeIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{},"retExtInfo":{},"time":0}`))
	}))
	defer srv.Close()

	_, err := NewFundingReader(testConfig(srv.URL)).Fetch(context.Background(), time.Now())
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Exchange != model.ExchangeBybit {
		t.Fatalf("expected bybit FetchError, got %v", err)
	}
}

func TestFetchUnreachableIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewFundingReader(testConfig(url)).Fetch(context.Background(), time.Now())
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

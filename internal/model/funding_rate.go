package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// FundingRecord is one upcoming funding settlement for a perpetual contract.
// Fields are unexported so a record cannot be mutated once built, and the
// settlement is always held in UTC.
type FundingRecord struct {
	exchange        Exchange
	symbol          string
	rate            float64
	nextFundingTime time.Time
}

// NewFundingRecord validates and builds a record. The settlement instant is
// converted to UTC and stripped of its monotonic reading.
func NewFundingRecord(exchange Exchange, symbol string, rate float64, nextFundingTime time.Time) (FundingRecord, error) {
	if exchange == "" {
		return FundingRecord{}, errors.New("exchange is required")
	}
	if symbol == "" {
		return FundingRecord{}, errors.New("symbol is required")
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return FundingRecord{}, fmt.Errorf("rate %v is not a finite number", rate)
	}
	if nextFundingTime.IsZero() {
		return FundingRecord{}, errors.New("next funding time is required")
	}
	return FundingRecord{
		exchange:        exchange,
		symbol:          symbol,
		rate:            rate,
		nextFundingTime: nextFundingTime.UTC().Round(0),
	}, nil
}

func (r FundingRecord) Exchange() Exchange { return r.exchange }

func (r FundingRecord) Symbol() string { return r.symbol }

// Rate is the funding rate as a fraction (0.0001 == 0.01%).
func (r FundingRecord) Rate() float64 { return r.rate }

// NextFundingTime is the UTC instant of the next settlement.
func (r FundingRecord) NextFundingTime() time.Time { return r.nextFundingTime }

// Key identifies the settlement a record refers to.
func (r FundingRecord) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.exchange, r.symbol, r.nextFundingTime.UnixMilli())
}

func (r FundingRecord) String() string {
	return fmt.Sprintf("%s %s %.6f @ %s", r.exchange, r.symbol, r.rate, r.nextFundingTime.Format(time.RFC3339))
}

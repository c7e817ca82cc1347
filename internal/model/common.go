// internal/model/common.go
package model

import "strings"

// Exchange identifies the venue a funding record was read from.
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeOKX     Exchange = "okx"
	ExchangeBybit   Exchange = "bybit"
	ExchangeMEXC    Exchange = "mexc"
)

var displayNames = map[Exchange]string{
	ExchangeBinance: "Binance",
	ExchangeOKX:     "OKX",
	ExchangeBybit:   "Bybit",
	ExchangeMEXC:    "MEXC",
}

// DisplayName returns the human readable exchange name used in digests.
func (e Exchange) DisplayName() string {
	if name, ok := displayNames[e]; ok {
		return name
	}
	if e == "" {
		return "unknown"
	}
	return strings.ToUpper(string(e[:1])) + string(e[1:])
}

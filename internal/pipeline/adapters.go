package pipeline

import (
	appconfig "fundingwatch/config"
	"fundingwatch/internal/reader"
	"fundingwatch/internal/reader/binance"
	"fundingwatch/internal/reader/bybit"
	"fundingwatch/internal/reader/mexc"
	"fundingwatch/internal/reader/okx"
)

// Adapters builds the enabled exchange adapters in a fixed order: Binance,
// OKX, Bybit, MEXC.
func Adapters(cfg *appconfig.Config) []reader.Adapter {
	var out []reader.Adapter
	if cfg.Source.Binance.Enabled {
		out = append(out, binance.NewFundingReader(cfg))
	}
	if cfg.Source.Okx.Enabled {
		out = append(out, okx.NewFundingReader(cfg))
	}
	if cfg.Source.Bybit.Enabled {
		out = append(out, bybit.NewFundingReader(cfg))
	}
	if cfg.Source.Mexc.Enabled {
		out = append(out, mexc.NewFundingReader(cfg))
	}
	return out
}

// OptionsFromConfig maps the alert section to pipeline options.
func OptionsFromConfig(cfg *appconfig.Config) Options {
	return Options{
		Window:    cfg.Alert.Window(),
		TopN:      cfg.Alert.TopN,
		Watchlist: cfg.Alert.Watchlist,
	}
}

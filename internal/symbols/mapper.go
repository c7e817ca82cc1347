package symbols

import "strings"

var separators = strings.NewReplacer("-", "", "_", "", "/", "")

// multiplierAliases maps contracts quoted in thousands of the base asset to
// the plain base asset.
var multiplierAliases = map[string]string{
	"1000BONKUSDT":  "BONKUSDT",
	"1000PEPEUSDT":  "PEPEUSDT",
	"1000SHIBUSDT":  "SHIBUSDT",
	"SHIB1000USDT":  "SHIBUSDT",
	"1000FLOKIUSDT": "FLOKIUSDT",
}

// ToBinance converts an exchange-specific perpetual symbol to the uppercase,
// separator-free Binance form (BTC-USDT-SWAP, BTC_USDT and btc/usdt all
// become BTCUSDT). An empty exchange applies only the generic rules, which is
// what watchlist entries use.
func ToBinance(exchange, sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))

	if strings.EqualFold(exchange, "okx") {
		sym = strings.TrimSuffix(sym, "-SWAP")
	}

	sym = separators.Replace(sym)
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	if alias, ok := multiplierAliases[sym]; ok {
		sym = alias
	}
	return sym
}

// Package symbol centralizes trading pair naming between the engine
// (coin ids like "BTC") and exchange-native symbols.
package symbol

import "strings"

const quote = "USDT"

// Perp returns the canonical USDT-margined perpetual symbol for a coin,
// e.g. "BTC" -> "BTC/USDT:USDT".
func Perp(coin string) string {
	return Coin(coin) + "/" + quote + ":" + quote
}

// Spot returns the spot pair for a coin, e.g. "BTC" -> "BTC/USDT".
func Spot(coin string) string {
	return Coin(coin) + "/" + quote
}

// Coin extracts the base coin from any of the supported notations
// ("BTC", "BTC/USDT", "BTC/USDT:USDT", "BTCUSDT").
func Coin(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if idx := strings.Index(sym, "/"); idx >= 0 {
		return sym[:idx]
	}
	return strings.TrimSuffix(sym, quote)
}

// ToExchange converts any supported notation to the exchange wire format
// without separators, e.g. "BTC/USDT:USDT" -> "BTCUSDT".
func ToExchange(sym string) string {
	return Coin(sym) + quote
}

// IsSpot reports whether sym names a spot pair rather than a perpetual.
func IsSpot(sym string) bool {
	return strings.Contains(sym, "/") && !strings.Contains(sym, ":")
}

package domain

import "strings"

// QuoteAsset is the quote currency every tracked pair settles in.
const QuoteAsset = "USDT"

// NormalizeSymbol canonicalises a raw symbol into "BASE/USDT" form.
// Inputs arrive in three shapes: already-slashed pairs ("btc/usdt"),
// concatenated venue symbols ("BTCUSDT"), and bare base assets ("BTC").
// The result is always upper-case; an empty or all-whitespace input
// normalises to the empty string.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "/") {
		return s
	}
	if strings.HasSuffix(s, QuoteAsset) && len(s) > len(QuoteAsset) {
		return s[:len(s)-len(QuoteAsset)] + "/" + QuoteAsset
	}
	return s + "/" + QuoteAsset
}

// VenueSymbol converts a canonical "BASE/USDT" pair back to the
// concatenated form exchanges expect ("BTCUSDT").
func VenueSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

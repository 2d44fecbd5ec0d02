package fetcher

import (
	"regexp"
	"strings"
)

// ExchangeSuffix is appended to every normalized ticker.
const ExchangeSuffix = ".NS"

var exchangeSuffixRe = regexp.MustCompile(`(?i)\.(NS|NSE|BSE|BO|NFO)$`)

// NormalizeSymbol maps user input onto the provider's NSE ticker: trimmed,
// upper-cased, one known exchange suffix removed and ".NS" appended.
// "reliance", "RELIANCE.BO" and " Reliance.ns " all become "RELIANCE.NS".
// Numeric BSE codes are forced onto NSE too; use ExactTicker when the
// exchange matters.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = exchangeSuffixRe.ReplaceAllString(s, "")
	if s == "" {
		return "", clientError(symbol, ErrEmptySymbol)
	}
	return s + ExchangeSuffix, nil
}

// ExactTicker trims and upper-cases an already qualified provider ticker
// without moving it to NSE, so "500325.bo" stays "500325.BO". A ticker that
// is blank or only an exchange suffix is a client error.
func ExactTicker(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if exchangeSuffixRe.ReplaceAllString(s, "") == "" {
		return "", clientError(symbol, ErrEmptySymbol)
	}
	return s, nil
}

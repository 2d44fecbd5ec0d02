package cache

// Kind identifies what a cache entry holds. Each kind has its own TTL.
type Kind string

const (
	// KindPrice entries hold a PriceValue.
	KindPrice Kind = "price"

	// KindMetrics entries hold a MetricsValue.
	KindMetrics Kind = "metrics"
)

// CacheKey identifies a cached artifact for one normalized ticker.
type CacheKey struct {
	// Kind is the artifact kind and doubles as the key prefix
	Kind Kind

	// Symbol is the normalized ticker (e.g., "RELIANCE.NS")
	Symbol string
}

// PriceKey returns the key of the cached price for symbol.
func PriceKey(symbol string) CacheKey {
	return CacheKey{Kind: KindPrice, Symbol: symbol}
}

// MetricsKey returns the key of the cached metrics for symbol.
func MetricsKey(symbol string) CacheKey {
	return CacheKey{Kind: KindMetrics, Symbol: symbol}
}

// String returns the store key.
// Format: <kind>:<symbol>
//
// Example:
//
//	price:RELIANCE.NS
func (k CacheKey) String() string {
	return string(k.Kind) + ":" + k.Symbol
}

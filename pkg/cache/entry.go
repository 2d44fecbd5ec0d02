package cache

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// NotAvailable is the sentinel stored for any metrics field that could not be
// determined. Consumers never see an absent field.
const NotAvailable = "N/A"

// PriceValue is a cached last-traded price.
type PriceValue struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Valid reports whether the price is finite and non-negative.
func (p PriceValue) Valid() bool {
	return ValidPrice(p.Price)
}

// ValidPrice reports whether price may be cached or returned.
func ValidPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price >= 0
}

// MetricsValue is a cached P/E ratio and next earnings date.
// Both fields are either a concrete value or NotAvailable.
type MetricsValue struct {
	Symbol         string `json:"symbol"`
	PERatio        string `json:"peRatio"`
	LatestEarnings string `json:"latestEarnings"`
}

// NewMetricsValue builds a MetricsValue, replacing empty fields with NotAvailable.
func NewMetricsValue(symbol, peRatio, latestEarnings string) MetricsValue {
	return MetricsValue{
		Symbol:         symbol,
		PERatio:        orNotAvailable(peRatio),
		LatestEarnings: orNotAvailable(latestEarnings),
	}
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// CacheEntry is the stored envelope around a cached value.
type CacheEntry struct {
	// Symbol is the normalized ticker the value belongs to
	Symbol string `json:"symbol"`

	// Kind tells which value type Value decodes into
	Kind Kind `json:"kind"`

	// Value is the JSON-encoded PriceValue or MetricsValue
	Value json.RawMessage `json:"value"`

	// WrittenAt is when the entry was written
	WrittenAt time.Time `json:"written_at"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age() time.Duration {
	age := time.Since(e.WrittenAt)
	if age < 0 {
		return 0
	}
	return age
}

// Decode unmarshals the entry value into v.
func (e *CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

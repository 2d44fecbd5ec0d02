package cache

import "testing"

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{"price", PriceKey("RELIANCE.NS"), "price:RELIANCE.NS"},
		{"metrics", MetricsKey("TCS.NS"), "metrics:TCS.NS"},
		{"custom kind", CacheKey{Kind: "quote", Symbol: "X.NS"}, "quote:X.NS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_KindsDoNotCollide(t *testing.T) {
	if PriceKey("A.NS").String() == MetricsKey("A.NS").String() {
		t.Error("price and metrics keys for the same symbol must differ")
	}
}

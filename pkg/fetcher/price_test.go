package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/internal/testutil"
	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/provider"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

func TestFetchPrice_NormalizesAndCaches(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["RELIANCE.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(2501.35)}
	ctx := context.Background()

	price, err := e.fetcher.FetchPrice(ctx, "reliance")
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if price != 2501.35 {
		t.Errorf("price = %v, want 2501.35", price)
	}
	if !e.mr.Exists("price:RELIANCE.NS") {
		t.Error("price should be cached under the normalized ticker")
	}
	if e.mr.Exists("price:reliance") {
		t.Error("price must not be cached under the raw symbol")
	}

	// Second request within TTL is served from cache with zero upstream calls.
	for _, sym := range []string{"reliance", "RELIANCE.BO", " Reliance.NS"} {
		price, err = e.fetcher.FetchPrice(ctx, sym)
		if err != nil || price != 2501.35 {
			t.Errorf("FetchPrice(%q) = %v, %v", sym, price, err)
		}
	}
	if got := e.provider.count("quote"); got != 1 {
		t.Errorf("quote calls = %d, want 1", got)
	}
}

func TestFetchPrice_CacheHitSkipsGates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cache.CachePrice(ctx, "TCS.NS", 4000)

	price, err := e.fetcher.FetchPrice(ctx, "tcs")
	if err != nil || price != 4000 {
		t.Fatalf("FetchPrice() = %v, %v", price, err)
	}
	if e.provider.total() != 0 {
		t.Errorf("provider calls = %d, want 0", e.provider.total())
	}
	if e.mr.Exists("rate_limit:external:yahoo") || e.mr.Exists("throttle:yahoo:TCS.NS") {
		t.Error("cache hit must not touch the outbound gates")
	}
}

func TestFetchPrice_FallbackOrder(t *testing.T) {
	tests := []struct {
		name  string
		quote *provider.Quote
		want  float64
	}{
		{"regular", &provider.Quote{RegularMarketPrice: provider.Float(10), PostMarketPrice: provider.Float(11), PreMarketPrice: provider.Float(12)}, 10},
		{"post market", &provider.Quote{PostMarketPrice: provider.Float(11), PreMarketPrice: provider.Float(12)}, 11},
		{"pre market", &provider.Quote{PreMarketPrice: provider.Float(12)}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.provider.quotes["A.NS"] = tt.quote

			price, err := e.fetcher.FetchPrice(context.Background(), "A")
			if err != nil {
				t.Fatalf("FetchPrice() error = %v", err)
			}
			if price != tt.want {
				t.Errorf("price = %v, want %v", price, tt.want)
			}
			if e.provider.count("chart") != 0 {
				t.Error("chart should not be called when the quote has a price")
			}
		})
	}
}

func TestFetchPrice_ChartFallbackIsCached(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["INFY.NS"] = &provider.Quote{}
	e.provider.charts["INFY.NS"] = &provider.Chart{PreviousClose: provider.Float(1510)}
	ctx := context.Background()

	price, err := e.fetcher.FetchPrice(ctx, "infy")
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if price != 1510 {
		t.Errorf("price = %v, want previous close 1510", price)
	}

	v, ok := e.cache.GetCachePrice(ctx, "INFY.NS")
	if !ok || v.Price != 1510 {
		t.Errorf("cached = %+v, %v, want 1510", v, ok)
	}
}

func TestFetchPrice_QuoteErrorFallsBackToChart(t *testing.T) {
	e := newEnv(t)
	e.provider.errs["quote:INFY.NS"] = errUpstream
	e.provider.charts["INFY.NS"] = &provider.Chart{RegularMarketPrice: provider.Float(1520.5), PreviousClose: provider.Float(1510)}

	price, err := e.fetcher.FetchPrice(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if price != 1520.5 {
		t.Errorf("price = %v, want 1520.5", price)
	}
}

func TestFetchPrice_NotFound(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["GHOST.NS"] = &provider.Quote{}

	_, err := e.fetcher.FetchPrice(context.Background(), "ghost")
	if !errors.Is(err, ErrPriceNotFound) {
		t.Fatalf("error = %v, want ErrPriceNotFound", err)
	}
	if KindOf(err) != KindUpstreamUnavailable {
		t.Errorf("kind = %q", KindOf(err))
	}
	if e.mr.Exists("price:GHOST.NS") {
		t.Error("nothing should be cached")
	}
}

func TestFetchPrice_ProviderDown(t *testing.T) {
	e := newEnv(t)
	e.provider.errs["quote:DOWN.NS"] = errUpstream
	e.provider.errs["chart:DOWN.NS"] = errUpstream

	_, err := e.fetcher.FetchPrice(context.Background(), "down")
	if !errors.Is(err, ErrProviderFailed) || !errors.Is(err, errUpstream) {
		t.Fatalf("error = %v, want ErrProviderFailed wrapping the cause", err)
	}
	if errors.Is(err, ErrPriceNotFound) {
		t.Error("provider failure should not read as price not found")
	}
}

func TestFetchPrice_GateClosed(t *testing.T) {
	rules := ratelimit.DefaultRules()
	rules.External = ratelimit.Rule{Window: time.Minute, Limit: 1}
	e := newEnvWith(t, rules, cache.DefaultTTLConfig())
	e.provider.quotes["A.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(1)}
	e.provider.quotes["B.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(2)}
	ctx := context.Background()

	if _, err := e.fetcher.FetchPrice(ctx, "A"); err != nil {
		t.Fatalf("first fetch error = %v", err)
	}

	_, err := e.fetcher.FetchPrice(ctx, "B")
	if !errors.Is(err, ErrUpstreamRateLimited) {
		t.Fatalf("error = %v, want ErrUpstreamRateLimited", err)
	}
	if KindOf(err) != KindUpstreamUnavailable {
		t.Errorf("kind = %q", KindOf(err))
	}
	if e.provider.count("quote:B.NS") != 0 {
		t.Error("closed gate must not call the provider")
	}
}

func TestFetchPrice_ThrottledWithoutCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Another caller holds the cooldown.
	if !e.limiter.Throttle(ctx, "yahoo:TCS.NS", time.Second) {
		t.Fatal("seed throttle")
	}

	_, err := e.fetcher.FetchPrice(ctx, "tcs")
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("error = %v, want ErrThrottled", err)
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindRateLimited || fe.RetryAfter != 500*time.Millisecond {
		t.Errorf("error = %+v", fe)
	}
	if e.provider.total() != 0 {
		t.Error("collapsed call must not reach the provider")
	}
}

func TestFetchPrice_ThrottledServesStale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.cache.CachePrice(ctx, "TCS.NS", 4000)

	sc := &scriptedCache{Cache: e.cache, missesBefore: 1}
	f := New(sc, e.limiter, e.provider, DefaultConfig(), zerolog.Nop())
	e.limiter.Throttle(ctx, "yahoo:TCS.NS", time.Second)

	price, err := f.FetchPrice(ctx, "TCS")
	if err != nil || price != 4000 {
		t.Fatalf("FetchPrice() = %v, %v, want the value cached meanwhile", price, err)
	}
	if sc.priceReads != 2 {
		t.Errorf("cache reads = %d, want 2", sc.priceReads)
	}
}

func TestFetchPrice_BurstCollapses(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["HDFCBANK.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(1650)}
	e.provider.delay = 50 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.fetcher.FetchPrice(ctx, "hdfcbank")
		}()
	}
	wg.Wait()

	if got := e.provider.count("quote"); got != 1 {
		t.Errorf("quote calls = %d, want 1", got)
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrThrottled) {
			t.Errorf("unexpected error %v", err)
		}
	}
}

func TestFetchPrice_StoreDownStillFetches(t *testing.T) {
	s := testutil.FailingStore{}
	c := cache.NewManager(s, cache.DefaultTTLConfig(), zerolog.Nop())
	l := ratelimit.NewLimiter(s, ratelimit.DefaultRules(), zerolog.Nop())
	p := newFakeProvider()
	p.quotes["A.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(7)}
	f := New(c, l, p, DefaultConfig(), zerolog.Nop())

	price, err := f.FetchPrice(context.Background(), "a")
	if err != nil || price != 7 {
		t.Errorf("FetchPrice() = %v, %v, want 7", price, err)
	}
}

func TestFetchPrice_CallerCancelDoesNotAbortUpstream(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["A.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(3)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	price, err := e.fetcher.FetchPrice(ctx, "a")
	if err != nil || price != 3 {
		t.Fatalf("FetchPrice() = %v, %v", price, err)
	}
	for _, ctxErr := range e.provider.ctxErrs {
		if ctxErr != nil {
			t.Errorf("provider saw cancelled context: %v", ctxErr)
		}
	}
	if !e.mr.Exists("price:A.NS") {
		t.Error("result should be cached after caller left")
	}
}

func TestFetchPrice_EmptySymbol(t *testing.T) {
	e := newEnv(t)

	_, err := e.fetcher.FetchPrice(context.Background(), "  ")
	if KindOf(err) != KindClientRequest {
		t.Errorf("kind = %q, want client_request", KindOf(err))
	}
}

func TestFetchPrice_InvalidPriceSkipped(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["A.NS"] = &provider.Quote{RegularMarketPrice: provider.Float(-5), PostMarketPrice: provider.Float(9)}

	price, err := e.fetcher.FetchPrice(context.Background(), "a")
	if err != nil || price != 9 {
		t.Errorf("FetchPrice() = %v, %v, want 9", price, err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := newEnv(t)
	f := New(e.cache, e.limiter, e.provider, Config{}, zerolog.Nop())

	if f.Config() != DefaultConfig() {
		t.Errorf("Config() = %+v, want defaults", f.Config())
	}

	defer func() {
		if recover() == nil {
			t.Error("New should panic without a provider")
		}
	}()
	New(e.cache, e.limiter, nil, Config{}, zerolog.Nop())
}

func TestFetchTicker_KeepsExchange(t *testing.T) {
	e := newEnv(t)
	e.provider.quotes["500325.BO"] = &provider.Quote{RegularMarketPrice: provider.Float(2498.4)}
	e.provider.summaries["500325.BO"] = &provider.Summary{
		SummaryDetail: &provider.Valuation{TrailingPE: provider.Float(24.5)},
	}
	ctx := context.Background()

	price, err := e.fetcher.FetchPriceTicker(ctx, "500325.bo")
	if err != nil || price != 2498.4 {
		t.Fatalf("FetchPriceTicker() = %v, %v", price, err)
	}
	m, err := e.fetcher.FetchMetricsTicker(ctx, "500325.BO")
	if err != nil || m.PERatio != "24.5" {
		t.Fatalf("FetchMetricsTicker() = %+v, %v", m, err)
	}

	if e.provider.count("quote:500325.BO") != 1 || e.provider.count("quote:500325.NS") != 0 {
		t.Errorf("provider calls = %v", e.provider.calls)
	}
	if !e.mr.Exists("price:500325.BO") || !e.mr.Exists("metrics:500325.BO") {
		t.Error("values should be cached under the exchange-qualified ticker")
	}
	if e.mr.Exists("price:500325.NS") {
		t.Error("BSE price must not land under the NSE key")
	}

	if _, err := e.fetcher.FetchPriceTicker(ctx, " "); KindOf(err) != KindClientRequest {
		t.Errorf("blank ticker kind = %q, want client_request", KindOf(err))
	}
}

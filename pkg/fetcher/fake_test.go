package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/internal/testutil"
	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/provider"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

var errUpstream = errors.New("upstream exploded")

// fakeProvider serves scripted responses and counts calls per endpoint and ticker.
type fakeProvider struct {
	mu        sync.Mutex
	quotes    map[string]*provider.Quote
	charts    map[string]*provider.Chart
	summaries map[string]*provider.Summary
	errs      map[string]error
	panics    map[string]bool
	calls     map[string]int
	delay     time.Duration
	ctxErrs   []error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		quotes:    make(map[string]*provider.Quote),
		charts:    make(map[string]*provider.Chart),
		summaries: make(map[string]*provider.Summary),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (p *fakeProvider) Name() string { return "yahoo" }

func (p *fakeProvider) record(ctx context.Context, endpoint, ticker string) error {
	p.mu.Lock()
	p.calls[endpoint+":"+ticker]++
	p.calls[endpoint]++
	delay := p.delay
	shouldPanic := p.panics[ticker]
	err := p.errs[endpoint+":"+ticker]
	p.mu.Unlock()

	if shouldPanic {
		panic("provider bug for " + ticker)
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	p.mu.Unlock()
	return err
}

func (p *fakeProvider) Quote(ctx context.Context, ticker string) (*provider.Quote, error) {
	if err := p.record(ctx, "quote", ticker); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.quotes[ticker]; ok {
		return q, nil
	}
	return &provider.Quote{Symbol: ticker}, nil
}

func (p *fakeProvider) IntradayChart(ctx context.Context, ticker string) (*provider.Chart, error) {
	if err := p.record(ctx, "chart", ticker); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.charts[ticker]; ok {
		return c, nil
	}
	return nil, provider.ErrNoData
}

func (p *fakeProvider) QuoteSummary(ctx context.Context, ticker string, _ []string) (*provider.Summary, error) {
	if err := p.record(ctx, "summary", ticker); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.summaries[ticker]; ok {
		return s, nil
	}
	return &provider.Summary{}, nil
}

func (p *fakeProvider) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[key]
}

func (p *fakeProvider) total() int {
	return p.count("quote") + p.count("chart") + p.count("summary")
}

// env wires a fetcher to a real cache and limiter over miniredis.
type env struct {
	mr       *miniredis.Miniredis
	cache    *cache.Manager
	limiter  *ratelimit.Limiter
	provider *fakeProvider
	fetcher  *Fetcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, ratelimit.DefaultRules(), cache.DefaultTTLConfig())
}

func newEnvWith(t *testing.T, rules ratelimit.Rules, ttl cache.TTLConfig) *env {
	t.Helper()
	mr, s := testutil.NewMiniRedis(t)
	c := cache.NewManager(s, ttl, zerolog.Nop())
	l := ratelimit.NewLimiter(s, rules, zerolog.Nop())
	p := newFakeProvider()
	f := New(c, l, p, DefaultConfig(), zerolog.Nop())
	return &env{mr: mr, cache: c, limiter: l, provider: p, fetcher: f}
}

// scriptedCache misses the first missesBefore reads of each kind, then
// delegates. It lets a test land a value between the cache check and the
// throttle re-check.
type scriptedCache struct {
	Cache
	mu           sync.Mutex
	missesBefore int
	priceReads   int
	metricsReads int
}

func (c *scriptedCache) GetCachePrice(ctx context.Context, symbol string) (cache.PriceValue, bool) {
	c.mu.Lock()
	c.priceReads++
	n := c.priceReads
	c.mu.Unlock()
	if n <= c.missesBefore {
		return cache.PriceValue{}, false
	}
	return c.Cache.GetCachePrice(ctx, symbol)
}

func (c *scriptedCache) GetCacheMetrics(ctx context.Context, symbol string) (cache.MetricsValue, bool) {
	c.mu.Lock()
	c.metricsReads++
	n := c.metricsReads
	c.mu.Unlock()
	if n <= c.missesBefore {
		return cache.MetricsValue{}, false
	}
	return c.Cache.GetCacheMetrics(ctx, symbol)
}

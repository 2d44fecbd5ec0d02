// Package fetcher orchestrates price and metrics lookups: cache first, then
// the outbound rate limit and throttle gates, then the upstream provider with
// its fallback ladder, and finally a best-effort cache write-back.
package fetcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/provider"
)

// Cache is the subset of the cache manager the fetcher uses.
type Cache interface {
	GetCachePrice(ctx context.Context, symbol string) (cache.PriceValue, bool)
	CachePrice(ctx context.Context, symbol string, price float64)
	GetCacheMetrics(ctx context.Context, symbol string) (cache.MetricsValue, bool)
	CacheMetrics(ctx context.Context, symbol, peRatio, latestEarnings string)
}

// Limiter is the subset of the rate limiter the fetcher uses.
type Limiter interface {
	CheckExternalAPI(ctx context.Context, provider string) bool
	Throttle(ctx context.Context, signature string, cooldown time.Duration) bool
}

// Config holds fetcher configuration.
type Config struct {
	// ThrottleCooldown is the debounce window for identical upstream calls
	ThrottleCooldown time.Duration

	// ProviderTimeout bounds each upstream call
	ProviderTimeout time.Duration

	// BatchConcurrency is the number of symbols fetched in parallel
	BatchConcurrency int
}

// DefaultConfig returns a 500ms throttle, a 10s provider timeout and 8 batch workers.
func DefaultConfig() Config {
	return Config{
		ThrottleCooldown: 500 * time.Millisecond,
		ProviderTimeout:  10 * time.Second,
		BatchConcurrency: 8,
	}
}

// Fetcher runs the price and metrics pipelines. It is safe for concurrent use;
// coordination between requests happens only through the shared store.
type Fetcher struct {
	cache    Cache
	limiter  Limiter
	provider provider.Provider
	config   Config
	logger   zerolog.Logger
}

// New creates a fetcher. Zero config fields take their defaults.
func New(c Cache, l Limiter, p provider.Provider, cfg Config, logger zerolog.Logger) *Fetcher {
	if c == nil || l == nil || p == nil {
		panic("fetcher requires cache, limiter and provider")
	}

	def := DefaultConfig()
	if cfg.ThrottleCooldown <= 0 {
		cfg.ThrottleCooldown = def.ThrottleCooldown
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = def.ProviderTimeout
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}

	return &Fetcher{
		cache:    c,
		limiter:  l,
		provider: p,
		config:   cfg,
		logger:   logger.With().Str("component", "fetcher").Logger(),
	}
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

func (f *Fetcher) log(ctx context.Context, ticker string) zerolog.Logger {
	return logging.Annotate(ctx, f.logger).With().
		Str("symbol", ticker).
		Str("provider", f.provider.Name()).
		Logger()
}

// upstream detaches ctx from the caller's cancellation so an in-flight
// provider call finishes and its result is cached even if the caller leaves.
func upstream(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// callTimeout bounds a single provider call.
func (f *Fetcher) callTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, f.config.ProviderTimeout)
}

func (f *Fetcher) throttleSignature(parts ...string) string {
	sig := f.provider.Name()
	for _, p := range parts {
		sig += ":" + p
	}
	return sig
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/provider"
)

// FetchPrice returns the last traded price for symbol.
//
// Steps:
//  1. cached price under the normalized ticker
//  2. outbound provider gate (closed: upstream unavailable)
//  3. throttle gate (collapsed: cached price, else ErrThrottled; never waits)
//  4. quote: regular, post-market, then pre-market price
//  5. intraday chart: regular price, then previous close
//  6. best-effort cache write
func (f *Fetcher) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := NormalizeSymbol(symbol)
	if err != nil {
		return 0, err
	}
	return f.fetchPrice(ctx, symbol, ticker)
}

// FetchPriceTicker is FetchPrice for a ticker that already names its
// exchange, such as a BSE "500325.BO". The ticker is used as given for the
// cache, limiter and throttle keys and the provider call.
func (f *Fetcher) FetchPriceTicker(ctx context.Context, ticker string) (float64, error) {
	exact, err := ExactTicker(ticker)
	if err != nil {
		return 0, err
	}
	return f.fetchPrice(ctx, ticker, exact)
}

func (f *Fetcher) fetchPrice(ctx context.Context, symbol, ticker string) (float64, error) {
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues("price").Observe(time.Since(start).Seconds())
	}()

	log := f.log(ctx, ticker)

	// Step 1: Cache
	if v, ok := f.cache.GetCachePrice(ctx, ticker); ok {
		fetchOutcomes.WithLabelValues("price", "cache").Inc()
		return v.Price, nil
	}

	ctx = upstream(ctx)

	// Step 2: Provider gate
	if !f.limiter.CheckExternalAPI(ctx, f.provider.Name()) {
		fetchOutcomes.WithLabelValues("price", "gate_closed").Inc()
		log.Warn().Msg("Outbound rate limit exceeded")
		return 0, &Error{Kind: KindUpstreamUnavailable, Symbol: symbol, Err: ErrUpstreamRateLimited}
	}

	// Step 3: Throttle gate
	if !f.limiter.Throttle(ctx, f.throttleSignature(ticker), f.config.ThrottleCooldown) {
		log.Warn().Msg("Throttled")
		if v, ok := f.cache.GetCachePrice(ctx, ticker); ok {
			fetchOutcomes.WithLabelValues("price", "stale").Inc()
			return v.Price, nil
		}
		fetchOutcomes.WithLabelValues("price", "throttled").Inc()
		return 0, &Error{
			Kind:       KindRateLimited,
			Symbol:     symbol,
			RetryAfter: f.config.ThrottleCooldown,
			Err:        ErrThrottled,
		}
	}

	// Step 4: Primary quote
	price, ok := f.quotePrice(ctx, ticker, log)
	source := "quote"

	// Step 5: Secondary chart
	if !ok {
		var chartErr error
		price, ok, chartErr = f.chartPrice(ctx, ticker, log)
		source = "chart"
		if !ok {
			fetchOutcomes.WithLabelValues("price", "not_found").Inc()
			if chartErr != nil && !errors.Is(chartErr, provider.ErrNoData) {
				log.Error().Err(chartErr).Msg("Price unavailable from every source")
				return 0, &Error{
					Kind:    KindUpstreamUnavailable,
					Symbol:  symbol,
					Message: fmt.Sprintf("Failed to fetch price for %s", symbol),
					Err:     fmt.Errorf("%w: %w", ErrProviderFailed, chartErr),
				}
			}
			log.Error().Msg("No usable price in quote or chart")
			return 0, &Error{
				Kind:    KindUpstreamUnavailable,
				Symbol:  symbol,
				Message: fmt.Sprintf("Price not found for %s", symbol),
				Err:     ErrPriceNotFound,
			}
		}
	}

	// Step 6: Cache write
	f.cache.CachePrice(ctx, ticker, price)

	fetchOutcomes.WithLabelValues("price", source).Inc()
	log.Info().Str("source", source).Float64("price", price).Msg("Fetched price")
	return price, nil
}

// quotePrice asks the primary source. Errors are logged and reported as no price.
func (f *Fetcher) quotePrice(ctx context.Context, ticker string, log zerolog.Logger) (float64, bool) {
	cctx, cancel := f.callTimeout(ctx)
	defer cancel()

	q, err := f.provider.Quote(cctx, ticker)
	if err != nil {
		log.Warn().Err(err).Msg("Quote failed, falling back to chart")
		return 0, false
	}
	return firstPrice(q.RegularMarketPrice, q.PostMarketPrice, q.PreMarketPrice)
}

// chartPrice asks the secondary source.
func (f *Fetcher) chartPrice(ctx context.Context, ticker string, log zerolog.Logger) (float64, bool, error) {
	cctx, cancel := f.callTimeout(ctx)
	defer cancel()

	ch, err := f.provider.IntradayChart(cctx, ticker)
	if err != nil {
		log.Warn().Err(err).Msg("Chart failed")
		return 0, false, err
	}
	price, ok := firstPrice(ch.RegularMarketPrice, ch.PreviousClose)
	return price, ok, nil
}

// firstPrice returns the first present, cacheable value.
func firstPrice(candidates ...*float64) (float64, bool) {
	for _, c := range candidates {
		if c != nil && cache.ValidPrice(*c) {
			return *c, true
		}
	}
	return 0, false
}

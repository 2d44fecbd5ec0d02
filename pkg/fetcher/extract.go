package fetcher

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/provider"
)

// FetchMetrics returns the P/E ratio and next earnings date for symbol.
// Only an empty symbol is an error: a closed gate, a collapsed throttle with
// nothing cached, or a failed summary all yield the "N/A" pair. A failed
// summary is not cached, so the next request goes upstream again.
func (f *Fetcher) FetchMetrics(ctx context.Context, symbol string) (cache.MetricsValue, error) {
	ticker, err := NormalizeSymbol(symbol)
	if err != nil {
		return cache.MetricsValue{}, err
	}
	return f.fetchMetrics(ctx, ticker), nil
}

// FetchMetricsTicker is FetchMetrics for a ticker that already names its
// exchange.
func (f *Fetcher) FetchMetricsTicker(ctx context.Context, ticker string) (cache.MetricsValue, error) {
	exact, err := ExactTicker(ticker)
	if err != nil {
		return cache.MetricsValue{}, err
	}
	return f.fetchMetrics(ctx, exact), nil
}

func (f *Fetcher) fetchMetrics(ctx context.Context, ticker string) cache.MetricsValue {
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues("metrics").Observe(time.Since(start).Seconds())
	}()

	log := f.log(ctx, ticker)
	unavailable := cache.NewMetricsValue(ticker, "", "")

	// Step 1: Cache
	if v, ok := f.cache.GetCacheMetrics(ctx, ticker); ok {
		fetchOutcomes.WithLabelValues("metrics", "cache").Inc()
		return v
	}

	ctx = upstream(ctx)

	// Step 2: Provider gate
	if !f.limiter.CheckExternalAPI(ctx, f.provider.Name()) {
		fetchOutcomes.WithLabelValues("metrics", "gate_closed").Inc()
		log.Warn().Msg("Outbound rate limit exceeded, metrics unavailable")
		return unavailable
	}

	// Step 3: Throttle gate
	if !f.limiter.Throttle(ctx, f.throttleSignature("metrics", ticker), f.config.ThrottleCooldown) {
		if v, ok := f.cache.GetCacheMetrics(ctx, ticker); ok {
			fetchOutcomes.WithLabelValues("metrics", "stale").Inc()
			return v
		}
		fetchOutcomes.WithLabelValues("metrics", "throttled").Inc()
		log.Warn().Msg("Throttled, metrics unavailable")
		return unavailable
	}

	// Step 4: Summary
	summary, err := f.summary(ctx, ticker)
	if err != nil {
		fetchOutcomes.WithLabelValues("metrics", "degraded").Inc()
		log.Warn().Err(err).Msg("Quote summary failed, metrics unavailable")
		return unavailable
	}

	// Step 5: Extraction
	trailing, forward := valuation(summary)
	if trailing == nil && forward == nil {
		trailing, forward = f.quoteValuation(ctx, ticker, log)
	}

	result := cache.NewMetricsValue(ticker, peRatio(trailing, forward), earningsDate(summary))

	// Step 6: Cache write
	f.cache.CacheMetrics(ctx, ticker, result.PERatio, result.LatestEarnings)

	fetchOutcomes.WithLabelValues("metrics", "quoteSummary").Inc()
	log.Info().
		Str("pe_ratio", result.PERatio).
		Str("latest_earnings", result.LatestEarnings).
		Msg("Fetched metrics")
	return result
}

func (f *Fetcher) summary(ctx context.Context, ticker string) (*provider.Summary, error) {
	cctx, cancel := f.callTimeout(ctx)
	defer cancel()
	return f.provider.QuoteSummary(cctx, ticker, provider.MetricsModules)
}

// quoteValuation is the simple-quote fallback for P/E. A failure leaves both absent.
func (f *Fetcher) quoteValuation(ctx context.Context, ticker string, log zerolog.Logger) (trailing, forward *float64) {
	cctx, cancel := f.callTimeout(ctx)
	defer cancel()

	q, err := f.provider.Quote(cctx, ticker)
	if err != nil {
		log.Warn().Err(err).Msg("Quote fallback for P/E failed")
		return nil, nil
	}
	return q.TrailingPE, q.ForwardPE
}

// valuation picks trailing and forward P/E from summaryDetail, then
// defaultKeyStatistics, then the price module, each field independently.
func valuation(s *provider.Summary) (trailing, forward *float64) {
	for _, v := range []*provider.Valuation{s.SummaryDetail, s.DefaultKeyStatistics, s.Price} {
		if v == nil {
			continue
		}
		if trailing == nil {
			trailing = v.TrailingPE
		}
		if forward == nil {
			forward = v.ForwardPE
		}
	}
	return trailing, forward
}

// peRatio formats trailing P/E, else forward P/E, else "".
func peRatio(trailing, forward *float64) string {
	switch {
	case trailing != nil:
		return formatNumber(*trailing)
	case forward != nil:
		return formatNumber(*forward)
	default:
		return ""
	}
}

// formatNumber renders the shortest decimal that round-trips.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// earningsDate picks the first announced earnings date, preformatted or from
// its epoch, then the earnings chart's current-quarter fields.
func earningsDate(s *provider.Summary) string {
	if len(s.EarningsDates) > 0 {
		d := s.EarningsDates[0]
		if d.Fmt != "" {
			return d.Fmt
		}
		if d.Raw != nil && *d.Raw != 0 {
			return time.Unix(*d.Raw, 0).UTC().Format("2006-01-02")
		}
	}
	if s.Earnings != nil {
		if s.Earnings.CurrentQuarterDate != "" {
			return s.Earnings.CurrentQuarterDate
		}
		if s.Earnings.CurrentQuarterEstimateDate != "" {
			return s.Earnings.CurrentQuarterEstimateDate
		}
	}
	return ""
}

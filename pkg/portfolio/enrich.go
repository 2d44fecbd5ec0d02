package portfolio

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/logging"
)

// Source supplies live data for exchange-qualified tickers such as
// "INFY.NS" or "500325.BO". *fetcher.Fetcher satisfies it.
type Source interface {
	FetchPriceTicker(ctx context.Context, ticker string) (float64, error)
	FetchMetricsTicker(ctx context.Context, ticker string) (cache.MetricsValue, error)
}

// Enricher refreshes portfolio items with live prices and metrics.
type Enricher struct {
	source      Source
	concurrency int
	logger      zerolog.Logger
}

// NewEnricher creates an enricher fetching up to concurrency items at once.
func NewEnricher(source Source, concurrency int, logger zerolog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{
		source:      source,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "portfolio").Logger(),
	}
}

// Enrich updates every item that has a Yahoo symbol in place and recomputes
// sector and overall totals. An item whose price cannot be fetched keeps its
// sheet values and records LiveError.
func (e *Enricher) Enrich(ctx context.Context, p *Portfolio) {
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for si := range p.Sectors {
		for ii := range p.Sectors[si].Items {
			item := &p.Sectors[si].Items[ii]
			if item.YahooSymbol == nil {
				enrichedItems.WithLabelValues("skipped").Inc()
				continue
			}
			g.Go(func() error {
				e.enrichItem(ctx, item)
				return nil
			})
		}
	}
	_ = g.Wait()

	for si := range p.Sectors {
		p.Sectors[si].refreshLiveTotals()
	}
	p.recomputeTotals()
}

func (e *Enricher) enrichItem(ctx context.Context, item *Item) {
	symbol := *item.YahooSymbol
	log := logging.Annotate(ctx, e.logger).With().Str("symbol", symbol).Logger()

	price, err := e.source.FetchPriceTicker(ctx, symbol)
	if err != nil {
		enrichedItems.WithLabelValues("failed").Inc()
		item.LiveError = err.Error()
		log.Warn().Err(err).Msg("Live price unavailable, keeping sheet values")
		return
	}

	item.applyPrice(price)

	if m, err := e.source.FetchMetricsTicker(ctx, symbol); err == nil {
		if pe, err := strconv.ParseFloat(m.PERatio, 64); err == nil {
			item.PETTM = &pe
		}
		if m.LatestEarnings != cache.NotAvailable {
			item.LatestEarnings = m.LatestEarnings
		}
	}

	enrichedItems.WithLabelValues("success").Inc()
}

// applyPrice sets the market price and the values derived from it.
func (it *Item) applyPrice(price float64) {
	cmp := decimal.NewFromFloat(price)
	it.CMP = &price

	if it.Qty == nil {
		return
	}
	present := cmp.Mul(decimal.NewFromFloat(*it.Qty))
	pv := present.InexactFloat64()
	it.PresentValue = &pv

	if it.Investment == nil {
		return
	}
	investment := decimal.NewFromFloat(*it.Investment)
	gain := present.Sub(investment)
	gl := gain.InexactFloat64()
	it.GainLoss = &gl

	if !investment.IsZero() {
		pct := gain.Div(investment).InexactFloat64()
		it.GainLossPct = &pct
	}
}

// refreshLiveTotals replaces the sector's present value and gain/loss with
// the sums over its items.
func (s *Sector) refreshLiveTotals() {
	s.Totals.PresentValue = sectorAmount(0, s.Items, presentValueOf).InexactFloat64()
	s.Totals.GainLoss = sectorAmount(0, s.Items, gainLossOf).InexactFloat64()
}

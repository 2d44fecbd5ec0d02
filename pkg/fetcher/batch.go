package fetcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/quotegate/pkg/cache"
)

// BatchErrorMessage is the error text of a failed batch record.
const BatchErrorMessage = "Failed to fetch data"

// BatchRecord is one symbol's result within a batch. A failed symbol has
// Error set, a nil Price and "N/A" metrics.
type BatchRecord struct {
	Symbol         string   `json:"symbol"`
	Error          string   `json:"error,omitempty"`
	Price          *float64 `json:"price"`
	PERatio        string   `json:"peRatio"`
	LatestEarnings string   `json:"latestEarnings"`
}

// Failed reports whether the record is an error marker.
func (r BatchRecord) Failed() bool {
	return r.Error != ""
}

func failedRecord(symbol string) BatchRecord {
	return BatchRecord{
		Symbol:         symbol,
		Error:          BatchErrorMessage,
		PERatio:        cache.NotAvailable,
		LatestEarnings: cache.NotAvailable,
	}
}

// FetchBatch fetches price and metrics for every symbol with bounded
// parallelism. The result has one record per input symbol in input order;
// one symbol's failure or panic never affects the others.
func (f *Fetcher) FetchBatch(ctx context.Context, symbols []string) []BatchRecord {
	start := time.Now()
	batchSymbols.Observe(float64(len(symbols)))

	results := make([]BatchRecord, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	// Workers never return errors, so one symbol cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(f.config.BatchConcurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	f.logger.Info().
		Int("symbols", len(symbols)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) (rec BatchRecord) {
	defer func() {
		if r := recover(); r != nil {
			fetchOutcomes.WithLabelValues("batch", "panic").Inc()
			f.logger.Error().
				Str("symbol", symbol).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in batch fetch")
			rec = failedRecord(symbol)
		}
	}()

	price, err := f.FetchPrice(ctx, symbol)
	if err != nil {
		log := f.log(ctx, symbol)
		log.Warn().Err(err).Msg("Batch price fetch failed")
		return failedRecord(symbol)
	}

	metrics, err := f.FetchMetrics(ctx, symbol)
	if err != nil {
		metrics = cache.NewMetricsValue(symbol, "", "")
	}

	return BatchRecord{
		Symbol:         symbol,
		Price:          &price,
		PERatio:        metrics.PERatio,
		LatestEarnings: metrics.LatestEarnings,
	}
}

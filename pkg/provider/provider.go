// Package provider defines the narrow interface the fetch pipeline uses to
// reach an upstream market-data source, and the typed values it returns.
//
// Every numeric field is optional: a nil pointer means the upstream did not
// report a usable number. Implementations return opaque errors; callers route
// them into their own fallback handling.
package provider

import (
	"context"
	"errors"
)

// ErrNoData is returned when the upstream answered but had no result for the ticker.
var ErrNoData = errors.New("no data returned")

// Summary module names understood by QuoteSummary.
const (
	ModuleSummaryDetail        = "summaryDetail"
	ModuleDefaultKeyStatistics = "defaultKeyStatistics"
	ModuleCalendarEvents       = "calendarEvents"
	ModulePrice                = "price"
	ModuleFinancialData        = "financialData"
	ModuleEarnings             = "earnings"
)

// MetricsModules is the module set requested for P/E and earnings extraction.
var MetricsModules = []string{
	ModuleSummaryDetail,
	ModuleDefaultKeyStatistics,
	ModuleCalendarEvents,
	ModulePrice,
	ModuleFinancialData,
	ModuleEarnings,
}

// Provider is an upstream market-data source.
type Provider interface {
	// Name identifies the provider in rate-limit keys, throttle signatures and logs.
	Name() string

	// Quote returns the simple quote for ticker.
	Quote(ctx context.Context, ticker string) (*Quote, error)

	// IntradayChart returns the current-day chart summary for ticker.
	IntradayChart(ctx context.Context, ticker string) (*Chart, error)

	// QuoteSummary returns the requested summary modules for ticker.
	QuoteSummary(ctx context.Context, ticker string, modules []string) (*Summary, error)
}

// Quote is a simple quote.
type Quote struct {
	Symbol             string
	RegularMarketPrice *float64
	PostMarketPrice    *float64
	PreMarketPrice     *float64
	TrailingPE         *float64
	ForwardPE          *float64
}

// Chart is the metadata of an intraday chart.
type Chart struct {
	Symbol             string
	RegularMarketPrice *float64
	PreviousClose      *float64
}

// Valuation holds the P/E ratios reported by one summary module.
type Valuation struct {
	TrailingPE *float64
	ForwardPE  *float64
}

// EarningsDate is one announced earnings date. Fmt is the upstream's
// preformatted date; Raw is the epoch in seconds.
type EarningsDate struct {
	Raw *int64
	Fmt string
}

// EarningsChart holds the current-quarter fields of the earnings module.
type EarningsChart struct {
	CurrentQuarterDate         string
	CurrentQuarterEstimateDate string
}

// Summary is a composite quote summary. Modules not returned are nil.
type Summary struct {
	SummaryDetail        *Valuation
	DefaultKeyStatistics *Valuation
	Price                *Valuation
	EarningsDates        []EarningsDate
	Earnings             *EarningsChart
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

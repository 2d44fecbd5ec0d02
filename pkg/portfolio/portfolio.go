// Package portfolio turns a holdings spreadsheet into sector-grouped
// portfolio data and optionally refreshes it with live prices and metrics.
//
// Rows come either from an .xlsx file (LoadSheet) or pre-normalized from a
// client; Build cleans the cells, groups items under sector header rows and
// computes totals with decimal arithmetic. Enricher fills current market
// price, present value, gain/loss, P/E and earnings date per item.
package portfolio

// Column names recognised in the sheet header.
const (
	ColNo            = "No"
	ColParticulars   = "Particulars"
	ColPurchasePrice = "Purchase Price"
	ColQty           = "Qty"
	ColInvestment    = "Investment"
	ColPortfolioPct  = "Portfolio (%)"
	ColSymbol        = "NSE/BSE"
	ColCMP           = "CMP"
	ColPresentValue  = "Present value"
	ColGainLoss      = "Gain/Loss"
	ColGainLossPct   = "Gain/Loss (%)"
	ColMarketCap     = "Market Cap"
	ColPETTM         = "P/E (TTM)"
	ColPE            = "P/E"
	ColEarnings      = "Latest Earnings"
)

// Exchanges an item can be listed on.
const (
	ExchangeNSE = "NSE"
	ExchangeBSE = "BSE"
)

// UncategorizedSector holds items that appear before the first sector header.
const UncategorizedSector = "Uncategorized"

// Row is one spreadsheet data row keyed by normalized header name.
// Values are nil, string, float64 or bool.
type Row map[string]any

// Item is one holding.
type Item struct {
	No             *float64 `json:"no"`
	Name           *string  `json:"name"`
	PurchasePrice  *float64 `json:"purchasePrice"`
	Qty            *float64 `json:"qty"`
	Investment     *float64 `json:"investment"`
	PortfolioPct   *float64 `json:"portfolioPct"`
	RawSymbol      *string  `json:"rawSymbol"`
	Exchange       *string  `json:"exchange"`
	YahooSymbol    *string  `json:"yahooSymbol"`
	CMP            *float64 `json:"cmp"`
	PresentValue   *float64 `json:"presentValue"`
	GainLoss       *float64 `json:"gainLoss"`
	GainLossPct    *float64 `json:"gainLossPct"`
	MarketCap      *float64 `json:"marketCap"`
	PETTM          *float64 `json:"peTTM"`
	LatestEarnings any      `json:"latestEarnings"`
	LiveError      string   `json:"liveError,omitempty"`
}

// Totals are aggregated amounts for a sector or the whole portfolio.
type Totals struct {
	Investment   float64 `json:"investment"`
	PresentValue float64 `json:"presentValue"`
	GainLoss     float64 `json:"gainLoss"`
	PortfolioPct float64 `json:"portfolioPct"`
}

// Sector groups the items listed under one sector header row.
type Sector struct {
	Name   string `json:"name"`
	Totals Totals `json:"totals"`
	Items  []Item `json:"items"`
}

// Portfolio is the whole sheet.
type Portfolio struct {
	Sheet   string   `json:"sheet"`
	Sectors []Sector `json:"sectors"`
	Totals  Totals   `json:"totals"`
}

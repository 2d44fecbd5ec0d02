package portfolio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// enrichedItems tracks live enrichment results per item
var enrichedItems = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quotegate_portfolio_items_enriched_total",
		Help: "Total number of portfolio items refreshed with live data",
	},
	[]string{"outcome"}, // "success", "failed", "skipped"
)

package portfolio

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	nseSuffix = regexp.MustCompile(`(?i)\.NS$`)
	bseSuffix = regexp.MustCompile(`(?i)\.BO$`)
	bseCode   = regexp.MustCompile(`^\d+$`)
)

// ConvertSymbol maps a sheet symbol to its exchange and Yahoo ticker.
// Numeric codes are BSE scrip codes; anything without a suffix is NSE.
func ConvertSymbol(raw any) (exchange, yahooSymbol *string) {
	s := text(raw)
	if s == nil {
		return nil, nil
	}
	sym := strings.TrimSpace(*s)
	if sym == "" {
		return nil, nil
	}

	var ex, ys string
	switch {
	case nseSuffix.MatchString(sym):
		ex, ys = ExchangeNSE, strings.ToUpper(sym)
	case bseSuffix.MatchString(sym):
		ex, ys = ExchangeBSE, strings.ToUpper(sym)
	case bseCode.MatchString(sym):
		ex, ys = ExchangeBSE, sym+".BO"
	default:
		ex, ys = ExchangeNSE, sym+".NS"
	}
	return &ex, &ys
}

// isSectorHeader reports whether r opens a new sector: a text name with no
// serial number, symbol or quantity.
func isSectorHeader(r Row) bool {
	_, named := r.lookup(ColParticulars, "particulars").(string)
	return named &&
		blank(r.lookup(ColNo, "no")) &&
		blank(r.lookup(ColSymbol, "NSE", "BSE")) &&
		blank(r.lookup(ColQty, "qty"))
}

func isEmptyRow(r Row) bool {
	for _, v := range r {
		if !blank(v) {
			return false
		}
	}
	return true
}

func newItem(r Row) Item {
	exchange, yahoo := ConvertSymbol(r[ColSymbol])

	pe := number(r[ColPETTM])
	if pe == nil {
		pe = number(r[ColPE])
	}

	return Item{
		No:             number(r[ColNo]),
		Name:           text(r[ColParticulars]),
		PurchasePrice:  number(r[ColPurchasePrice]),
		Qty:            number(r[ColQty]),
		Investment:     number(r[ColInvestment]),
		PortfolioPct:   number(r[ColPortfolioPct]),
		RawSymbol:      text(r[ColSymbol]),
		Exchange:       exchange,
		YahooSymbol:    yahoo,
		CMP:            number(r[ColCMP]),
		PresentValue:   number(r[ColPresentValue]),
		GainLoss:       number(r[ColGainLoss]),
		GainLossPct:    number(r[ColGainLossPct]),
		MarketCap:      number(r[ColMarketCap]),
		PETTM:          pe,
		LatestEarnings: CleanCell(r[ColEarnings]),
	}
}

func amount(v any) float64 {
	if f := number(v); f != nil {
		return *f
	}
	return 0
}

// Build cleans rows and groups them into sectors. Items before the first
// sector header land in UncategorizedSector, which is dropped when empty.
func Build(sheet string, rows []Row) *Portfolio {
	sectors := []*Sector{{Name: UncategorizedSector}}
	current := sectors[0]

	for _, raw := range rows {
		r := CleanRow(raw)

		if isSectorHeader(r) {
			name := strings.TrimSpace(r.lookup(ColParticulars, "particulars").(string))
			if current.Name != name {
				current = &Sector{Name: name}
				sectors = append(sectors, current)
			}
			current.Totals = Totals{
				Investment:   amount(r[ColInvestment]),
				PresentValue: amount(r[ColPresentValue]),
				GainLoss:     amount(r[ColGainLoss]),
				PortfolioPct: amount(r[ColPortfolioPct]),
			}
			continue
		}

		if isEmptyRow(r) {
			continue
		}
		current.Items = append(current.Items, newItem(r))
	}

	p := &Portfolio{Sheet: sheet, Sectors: make([]Sector, 0, len(sectors))}
	for i, s := range sectors {
		if i == 0 && len(s.Items) == 0 && s.Totals == (Totals{}) {
			continue
		}
		if s.Items == nil {
			s.Items = []Item{}
		}
		p.Sectors = append(p.Sectors, *s)
	}
	p.recomputeTotals()
	return p
}

// sectorAmount returns the header total when present, else the sum over items.
func sectorAmount(header float64, items []Item, field func(Item) *float64) decimal.Decimal {
	if header != 0 {
		return decimal.NewFromFloat(header)
	}
	sum := decimal.Zero
	for _, it := range items {
		if v := field(it); v != nil {
			sum = sum.Add(decimal.NewFromFloat(*v))
		}
	}
	return sum
}

func investmentOf(it Item) *float64   { return it.Investment }
func presentValueOf(it Item) *float64 { return it.PresentValue }
func gainLossOf(it Item) *float64     { return it.GainLoss }

// recomputeTotals derives overall totals and each sector's share of the
// total investment.
func (p *Portfolio) recomputeTotals() {
	investment, present, gain := decimal.Zero, decimal.Zero, decimal.Zero
	sectorInvestment := make([]decimal.Decimal, len(p.Sectors))

	for i, s := range p.Sectors {
		sectorInvestment[i] = sectorAmount(s.Totals.Investment, s.Items, investmentOf)
		investment = investment.Add(sectorInvestment[i])
		present = present.Add(sectorAmount(s.Totals.PresentValue, s.Items, presentValueOf))
		gain = gain.Add(sectorAmount(s.Totals.GainLoss, s.Items, gainLossOf))
	}

	if investment.IsPositive() {
		for i := range p.Sectors {
			p.Sectors[i].Totals.PortfolioPct = sectorInvestment[i].Div(investment).InexactFloat64()
		}
	}

	p.Totals = Totals{
		Investment:   investment.InexactFloat64(),
		PresentValue: present.InexactFloat64(),
		GainLoss:     gain.InexactFloat64(),
		PortfolioPct: 1,
	}
}

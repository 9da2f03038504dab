// Package valuation computes profit/loss figures from positions and quotes.
// Everything here is a pure function of its inputs: recomputing from the same
// positions and quotes always yields the same result, so callers need no
// invalidation bookkeeping beyond tracking the inputs themselves.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Valuation is the derived worth of a single position.
type Valuation struct {
	Invested     decimal.Decimal `json:"invested"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	PL           decimal.Decimal `json:"pl"`
	PLPercent    decimal.Decimal `json:"plPercent"`
}

// Summary aggregates valuations across a holder's positions.
type Summary struct {
	Invested       decimal.Decimal `json:"invested"`
	TotalPL        decimal.Decimal `json:"totalPL"`
	TotalPLPercent decimal.Decimal `json:"totalPLPercent"`
	OpenCount      int             `json:"openCount"`
	ClosedCount    int             `json:"closedCount"`
}

// Valuate computes a position's worth. Closed positions use their realized
// sell price. Open positions use the latest quote, or fall back to the buy
// price when no quote has arrived yet, which reports zero profit/loss rather
// than an absent one.
func Valuate(p *models.Position, quote *models.Quote) Valuation {
	invested := p.BuyPrice.Mul(p.Quantity)

	var price decimal.Decimal
	switch {
	case p.Closed():
		price = *p.SellPrice
	case quote != nil:
		price = decimal.NewFromFloat(quote.CurrentPrice)
	default:
		price = p.BuyPrice
	}

	currentValue := price.Mul(p.Quantity)
	pl := currentValue.Sub(invested)

	plPercent := decimal.Zero
	if invested.IsPositive() {
		plPercent = pl.Div(invested).Mul(hundred).Round(2)
	}

	return Valuation{
		Invested:     invested,
		CurrentValue: currentValue,
		PL:           pl,
		PLPercent:    plPercent,
	}
}

// Summarize aggregates a position set against the latest quotes, keyed by
// symbol. Invested and profit/loss are summed independently and the portfolio
// percentage is derived from those sums, not averaged across positions, so
// small positions carry their proper weight.
func Summarize(positions []*models.Position, quotes map[string]models.Quote) Summary {
	s := Summary{
		Invested: decimal.Zero,
		TotalPL:  decimal.Zero,
	}

	for _, p := range positions {
		var quote *models.Quote
		if q, ok := quotes[p.Ticker]; ok {
			quote = &q
		}
		v := Valuate(p, quote)

		s.Invested = s.Invested.Add(v.Invested)
		s.TotalPL = s.TotalPL.Add(v.PL)
		if p.Closed() {
			s.ClosedCount++
		} else {
			s.OpenCount++
		}
	}

	s.TotalPLPercent = decimal.Zero
	if s.Invested.IsPositive() {
		s.TotalPLPercent = s.TotalPL.Div(s.Invested).Mul(hundred).Round(2)
	}
	s.Invested = s.Invested.Round(2)
	s.TotalPL = s.TotalPL.Round(2)
	return s
}

package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

func openPosition(ticker string, qty, buyPrice float64) *models.Position {
	return &models.Position{
		ID:       1,
		HolderID: 1,
		Ticker:   ticker,
		Quantity: decimal.NewFromFloat(qty),
		BuyPrice: decimal.NewFromFloat(buyPrice),
		BuyDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func closedPosition(ticker string, qty, buyPrice, sellPrice float64) *models.Position {
	p := openPosition(ticker, qty, buyPrice)
	sp := decimal.NewFromFloat(sellPrice)
	sd := p.BuyDate.AddDate(0, 1, 0)
	p.SellPrice = &sp
	p.SellDate = &sd
	return p
}

// TestValuateClosedPosition verifies a closed position is valued at its
// realized sell price regardless of any quote.
func TestValuateClosedPosition(t *testing.T) {
	p := closedPosition("AAPL", 10, 100, 120)
	quote := &models.Quote{Symbol: "AAPL", CurrentPrice: 999.0}

	v := Valuate(p, quote)

	assert.True(t, v.Invested.Equal(decimal.NewFromInt(1000)), "invested = %s", v.Invested)
	assert.True(t, v.CurrentValue.Equal(decimal.NewFromInt(1200)), "currentValue = %s", v.CurrentValue)
	assert.True(t, v.PL.Equal(decimal.NewFromInt(200)), "pl = %s", v.PL)
	assert.True(t, v.PLPercent.Equal(decimal.NewFromInt(20)), "plPercent = %s", v.PLPercent)
}

// TestValuateOpenPositionWithQuote verifies an open position uses the latest
// quote price.
func TestValuateOpenPositionWithQuote(t *testing.T) {
	p := openPosition("TSLA", 4, 250)
	quote := &models.Quote{Symbol: "TSLA", CurrentPrice: 300.0}

	v := Valuate(p, quote)

	assert.True(t, v.Invested.Equal(decimal.NewFromInt(1000)))
	assert.True(t, v.CurrentValue.Equal(decimal.NewFromInt(1200)))
	assert.True(t, v.PL.Equal(decimal.NewFromInt(200)))
	assert.True(t, v.PLPercent.Equal(decimal.NewFromInt(20)))
}

// TestValuateOpenPositionWithoutQuote verifies the buy price fallback: an open
// position with no quote reports zero profit/loss, not a missing one.
func TestValuateOpenPositionWithoutQuote(t *testing.T) {
	p := openPosition("MSFT", 5, 400)

	v := Valuate(p, nil)

	assert.True(t, v.Invested.Equal(decimal.NewFromInt(2000)))
	assert.True(t, v.CurrentValue.Equal(decimal.NewFromInt(2000)))
	assert.True(t, v.PL.IsZero(), "pl = %s", v.PL)
	assert.True(t, v.PLPercent.IsZero(), "plPercent = %s", v.PLPercent)
}

// TestValuatePercentRounding verifies the percentage is rounded to two
// decimal places.
func TestValuatePercentRounding(t *testing.T) {
	// invested 900, value 1000, pl 100: 11.1111...% rounds to 11.11
	p := openPosition("NVDA", 1, 900)
	quote := &models.Quote{Symbol: "NVDA", CurrentPrice: 1000.0}

	v := Valuate(p, quote)

	assert.True(t, v.PLPercent.Equal(decimal.RequireFromString("11.11")), "plPercent = %s", v.PLPercent)
}

// TestSummarizeWeightsBySums verifies the portfolio percentage derives from
// summed invested and profit/loss rather than averaging per-position
// percentages: 1000 at +20% and 500 at -20% is +6.67%, not 0%.
func TestSummarizeWeightsBySums(t *testing.T) {
	positions := []*models.Position{
		closedPosition("AAPL", 10, 100, 120), // invested 1000, pl +200
		closedPosition("TSLA", 5, 100, 80),   // invested 500, pl -100
	}

	s := Summarize(positions, nil)

	assert.True(t, s.Invested.Equal(decimal.NewFromInt(1500)), "invested = %s", s.Invested)
	assert.True(t, s.TotalPL.Equal(decimal.NewFromInt(100)), "totalPL = %s", s.TotalPL)
	assert.True(t, s.TotalPLPercent.Equal(decimal.RequireFromString("6.67")), "totalPLPercent = %s", s.TotalPLPercent)
	assert.Equal(t, 0, s.OpenCount)
	assert.Equal(t, 2, s.ClosedCount)
}

// TestSummarizeMixedOpenAndClosed verifies open positions value against
// quotes while closed ones keep their realized figures, and the counts split
// correctly.
func TestSummarizeMixedOpenAndClosed(t *testing.T) {
	positions := []*models.Position{
		openPosition("AAPL", 10, 100),        // invested 1000
		closedPosition("TSLA", 2, 200, 250),  // invested 400, pl +100
		openPosition("MSFT", 1, 400),         // invested 400, no quote → pl 0
	}
	quotes := map[string]models.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110.0}, // pl +100
	}

	s := Summarize(positions, quotes)

	assert.True(t, s.Invested.Equal(decimal.NewFromInt(1800)), "invested = %s", s.Invested)
	assert.True(t, s.TotalPL.Equal(decimal.NewFromInt(200)), "totalPL = %s", s.TotalPL)
	assert.True(t, s.TotalPLPercent.Equal(decimal.RequireFromString("11.11")), "totalPLPercent = %s", s.TotalPLPercent)
	assert.Equal(t, 2, s.OpenCount)
	assert.Equal(t, 1, s.ClosedCount)
}

// TestSummarizeEmptyPortfolio verifies zero positions produce all-zero
// figures without dividing by zero.
func TestSummarizeEmptyPortfolio(t *testing.T) {
	s := Summarize(nil, nil)

	assert.True(t, s.Invested.IsZero())
	assert.True(t, s.TotalPL.IsZero())
	assert.True(t, s.TotalPLPercent.IsZero())
	assert.Equal(t, 0, s.OpenCount)
	assert.Equal(t, 0, s.ClosedCount)
}

// TestSummarizeIsDeterministic verifies recomputation with unchanged inputs
// yields identical results.
func TestSummarizeIsDeterministic(t *testing.T) {
	positions := []*models.Position{
		openPosition("AAPL", 3, 150),
		closedPosition("TSLA", 2, 200, 180),
	}
	quotes := map[string]models.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 155.5},
	}

	first := Summarize(positions, quotes)
	second := Summarize(positions, quotes)

	assert.True(t, first.Invested.Equal(second.Invested))
	assert.True(t, first.TotalPL.Equal(second.TotalPL))
	assert.True(t, first.TotalPLPercent.Equal(second.TotalPLPercent))
}

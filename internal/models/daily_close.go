package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyClose records the last observed close price for a symbol on a day.
// The poller writes one row per (symbol, day); the portfolio history endpoint
// reads them back.
type DailyClose struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Close     decimal.Decimal `json:"close"`
	CreatedAt time.Time       `json:"createdAt"`
}

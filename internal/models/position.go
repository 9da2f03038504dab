package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a holder's stake in a ticker. A position is open until
// it is closed by setting SellPrice and SellDate together.
type Position struct {
	ID        int64            `json:"id"`
	HolderID  int64            `json:"holderId"`
	Ticker    string           `json:"ticker"`
	Quantity  decimal.Decimal  `json:"quantity"`
	BuyPrice  decimal.Decimal  `json:"buyPrice"`
	BuyDate   time.Time        `json:"buyDate"`
	SellPrice *decimal.Decimal `json:"sellPrice,omitempty"`
	SellDate  *time.Time       `json:"sellDate,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Closed reports whether the position has been sold.
func (p *Position) Closed() bool {
	return p.SellDate != nil
}

// Open reports whether the position is still held.
func (p *Position) Open() bool {
	return p.SellDate == nil
}

// PositionStatus filters position listings.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
	StatusAll    PositionStatus = "all"
)

// ValidStatus reports whether s is a recognized listing filter.
func ValidStatus(s PositionStatus) bool {
	switch s {
	case StatusOpen, StatusClosed, StatusAll:
		return true
	}
	return false
}

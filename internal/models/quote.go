package models

import "time"

// Quote is a point-in-time price observation for a ticker. Quotes are
// ephemeral: they live in poller output and client caches, never in postgres.
type Quote struct {
	Symbol             string    `json:"symbol"`
	CurrentPrice       float64   `json:"currentPrice"`
	PreviousClose      float64   `json:"previousClose,omitempty"`
	DailyChange        float64   `json:"dailyChange,omitempty"`
	DailyChangePercent float64   `json:"dailyChangePercent"`
	LogoURL            string    `json:"logoUrl,omitempty"`
	FetchedAt          time.Time `json:"fetchedAt,omitempty"`
}

package marketdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// DailyCloseStore persists one close observation per symbol per day.
type DailyCloseStore interface {
	UpsertDailyClose(c *models.DailyClose) error
}

// Recorder writes poll results through to the snapshot cache and the daily
// close table. It satisfies the poller's Recorder dependency.
type Recorder struct {
	cache  *Cache
	closes DailyCloseStore
}

// NewRecorder creates a recorder. Either destination may be nil.
func NewRecorder(cache *Cache, closes DailyCloseStore) *Recorder {
	return &Recorder{cache: cache, closes: closes}
}

// RecordQuotes stores the latest snapshot and today's close for each quote.
func (r *Recorder) RecordQuotes(ctx context.Context, quotes []models.Quote) error {
	if r.cache != nil {
		if err := r.cache.Set(ctx, quotes); err != nil {
			return err
		}
	}

	if r.closes != nil {
		for _, q := range quotes {
			dc := &models.DailyClose{
				Symbol: q.Symbol,
				Date:   q.FetchedAt,
				Close:  decimal.NewFromFloat(q.CurrentPrice),
			}
			if err := r.closes.UpsertDailyClose(dc); err != nil {
				return fmt.Errorf("failed to record close for %s: %w", q.Symbol, err)
			}
		}
	}
	return nil
}

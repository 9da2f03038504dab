package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

type mockCloseStore struct {
	err    error
	closes []*models.DailyClose
}

func (m *mockCloseStore) UpsertDailyClose(c *models.DailyClose) error {
	if m.err != nil {
		return m.err
	}
	m.closes = append(m.closes, c)
	return nil
}

// TestRecordQuotesWritesCloses verifies each quote produces one daily close
// observation with the fetch timestamp as its day.
func TestRecordQuotesWritesCloses(t *testing.T) {
	store := &mockCloseStore{}
	r := NewRecorder(nil, store)

	fetched := time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)
	err := r.RecordQuotes(context.Background(), []models.Quote{
		{Symbol: "AAPL", CurrentPrice: 150.25, FetchedAt: fetched},
		{Symbol: "TSLA", CurrentPrice: 250.75, FetchedAt: fetched},
	})
	require.NoError(t, err)

	require.Len(t, store.closes, 2)
	assert.Equal(t, "AAPL", store.closes[0].Symbol)
	assert.True(t, store.closes[0].Close.Equal(decimal.NewFromFloat(150.25)))
	assert.Equal(t, fetched, store.closes[0].Date)
}

// TestRecordQuotesPropagatesStoreError verifies a store failure surfaces.
func TestRecordQuotesPropagatesStoreError(t *testing.T) {
	store := &mockCloseStore{err: fmt.Errorf("db down")}
	r := NewRecorder(nil, store)

	err := r.RecordQuotes(context.Background(), []models.Quote{{Symbol: "AAPL"}})
	assert.Error(t, err)
}

// TestRecordQuotesWithNoDestinations verifies a fully nil recorder is a no-op.
func TestRecordQuotesWithNoDestinations(t *testing.T) {
	r := NewRecorder(nil, nil)
	assert.NoError(t, r.RecordQuotes(context.Background(), []models.Quote{{Symbol: "AAPL"}}))
}

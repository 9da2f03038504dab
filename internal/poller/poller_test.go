package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// mockRegistry returns a fixed snapshot or an error.
type mockRegistry struct {
	snapshot map[int64][]string
	err      error

	mu    sync.Mutex
	calls int
}

func (m *mockRegistry) SnapshotOpenTickers() (map[int64][]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

// mockFetcher serves quotes per symbol and can fail selectively: any request
// containing a symbol listed in failOn returns an error.
type mockFetcher struct {
	prices map[string]float64
	failOn map[string]bool
	extra  []models.Quote // returned on every call, simulating a leaky provider

	mu    sync.Mutex
	calls [][]string
}

func (m *mockFetcher) GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbols)
	m.mu.Unlock()

	var quotes []models.Quote
	for _, s := range symbols {
		if m.failOn[s] {
			return nil, fmt.Errorf("provider error for %s", s)
		}
		if price, ok := m.prices[s]; ok {
			quotes = append(quotes, models.Quote{Symbol: s, CurrentPrice: price, DailyChangePercent: 0.5})
		}
	}
	return append(quotes, m.extra...), nil
}

// mockPublisher records published events per holder.
type mockPublisher struct {
	mu     sync.Mutex
	events map[int64][]models.Event
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{events: make(map[int64][]models.Event)}
}

func (m *mockPublisher) Publish(holderID int64, event models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[holderID] = append(m.events[holderID], event)
}

func (m *mockPublisher) eventsFor(holderID int64) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[holderID]
}

// mockRecorder counts recorded quotes and can fail.
type mockRecorder struct {
	err error

	mu      sync.Mutex
	batches [][]models.Quote
}

func (m *mockRecorder) RecordQuotes(ctx context.Context, quotes []models.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, quotes)
	return m.err
}

func newTestPoller(reg Registry, f QuoteFetcher, pub Publisher, rec Recorder) *Poller {
	return New(reg, f, pub, rec, zap.NewNop(), Options{
		Interval:     time.Hour, // ticks driven manually in tests
		FetchTimeout: time.Second,
		Workers:      4,
	})
}

// TestTickPublishesOneEventPerHolder verifies a tick emits exactly one price
// update per holder, carrying all and only that holder's open tickers.
func TestTickPublishesOneEventPerHolder(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{
		1: {"AAPL", "TSLA"},
		2: {"MSFT"},
	}}
	fetcher := &mockFetcher{prices: map[string]float64{
		"AAPL": 150.0, "TSLA": 250.0, "MSFT": 400.0,
	}}
	pub := newMockPublisher()

	p := newTestPoller(reg, fetcher, pub, nil)
	p.tick(context.Background())

	events1 := pub.eventsFor(1)
	require.Len(t, events1, 1)
	pe, ok := events1[0].(models.PriceUpdateEvent)
	require.True(t, ok)
	symbols := make([]string, 0, len(pe.Updates))
	for _, u := range pe.Updates {
		symbols = append(symbols, u.Symbol)
	}
	sort.Strings(symbols)
	assert.Equal(t, []string{"AAPL", "TSLA"}, symbols)

	events2 := pub.eventsFor(2)
	require.Len(t, events2, 1)
	pe2 := events2[0].(models.PriceUpdateEvent)
	require.Len(t, pe2.Updates, 1)
	assert.Equal(t, "MSFT", pe2.Updates[0].Symbol)
	assert.Equal(t, 400.0, pe2.Updates[0].CurrentPrice)
}

// TestHolderFailureDoesNotAffectOthers verifies per-holder isolation: one
// holder's provider error skips only that holder.
func TestHolderFailureDoesNotAffectOthers(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{
		1: {"FAIL"},
		2: {"MSFT"},
	}}
	fetcher := &mockFetcher{
		prices: map[string]float64{"MSFT": 400.0},
		failOn: map[string]bool{"FAIL": true},
	}
	pub := newMockPublisher()

	p := newTestPoller(reg, fetcher, pub, nil)
	p.tick(context.Background())

	assert.Empty(t, pub.eventsFor(1))
	require.Len(t, pub.eventsFor(2), 1)
}

// TestRegistryErrorSkipsTick verifies a snapshot failure skips the whole tick
// without publishing anything.
func TestRegistryErrorSkipsTick(t *testing.T) {
	reg := &mockRegistry{err: fmt.Errorf("db unavailable")}
	fetcher := &mockFetcher{}
	pub := newMockPublisher()

	p := newTestPoller(reg, fetcher, pub, nil)
	p.tick(context.Background())

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, pub.events)
}

// TestLeakedSymbolsAreFiltered verifies quotes for symbols a holder did not
// request never reach that holder's event.
func TestLeakedSymbolsAreFiltered(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{
		1: {"AAPL"},
	}}
	fetcher := &mockFetcher{
		prices: map[string]float64{"AAPL": 150.0},
		extra:  []models.Quote{{Symbol: "EVIL", CurrentPrice: 1.0}},
	}
	pub := newMockPublisher()

	p := newTestPoller(reg, fetcher, pub, nil)
	p.tick(context.Background())

	events := pub.eventsFor(1)
	require.Len(t, events, 1)
	pe := events[0].(models.PriceUpdateEvent)
	require.Len(t, pe.Updates, 1)
	assert.Equal(t, "AAPL", pe.Updates[0].Symbol)
}

// TestEmptySnapshotPublishesNothing verifies a tick with no open positions
// does not call the provider.
func TestEmptySnapshotPublishesNothing(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{}}
	fetcher := &mockFetcher{}
	pub := newMockPublisher()

	p := newTestPoller(reg, fetcher, pub, nil)
	p.tick(context.Background())

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, pub.events)
}

// TestRecorderFailureDoesNotBlockPublish verifies recording is best-effort:
// the price update is still published when the recorder errors.
func TestRecorderFailureDoesNotBlockPublish(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{1: {"AAPL"}}}
	fetcher := &mockFetcher{prices: map[string]float64{"AAPL": 150.0}}
	pub := newMockPublisher()
	rec := &mockRecorder{err: fmt.Errorf("redis down")}

	p := newTestPoller(reg, fetcher, pub, rec)
	p.tick(context.Background())

	require.Len(t, pub.eventsFor(1), 1)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.batches, 1)
}

// TestRunStopsOnContextCancel verifies Run returns promptly after cancel.
func TestRunStopsOnContextCancel(t *testing.T) {
	reg := &mockRegistry{snapshot: map[int64][]string{}}
	p := New(reg, &mockFetcher{}, newMockPublisher(), nil, zap.NewNop(), Options{
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancel")
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	assert.Greater(t, reg.calls, 0, "poller should have ticked at least once")
}

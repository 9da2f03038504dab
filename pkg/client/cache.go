package client

import (
	"sync"

	"github.com/wealthwatch/portfolio-service/internal/models"
	"github.com/wealthwatch/portfolio-service/internal/valuation"
)

// Cache is the in-memory reactive state for one holder: the latest known
// quotes and the open/closed position lists. Price updates patch quotes in
// place; structural events only mark lists stale so the read path stays the
// single source of truth for membership. Both operations are idempotent, so
// duplicate or reordered deliveries cannot corrupt state.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
	lists  map[models.PositionStatus][]*models.Position
	stale  map[models.PositionStatus]bool
}

// NewCache creates an empty cache with both lists marked stale.
func NewCache() *Cache {
	return &Cache{
		quotes: make(map[string]models.Quote),
		lists:  make(map[models.PositionStatus][]*models.Position),
		stale: map[models.PositionStatus]bool{
			models.StatusOpen:   true,
			models.StatusClosed: true,
		},
	}
}

// ApplyPriceUpdate patches the named symbols' price and change fields,
// leaving every other quote field and all position data untouched. Applying
// the same update twice yields the same state as applying it once.
func (c *Cache) ApplyPriceUpdate(event models.PriceUpdateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range event.Updates {
		q := c.quotes[u.Symbol]
		q.Symbol = u.Symbol
		q.CurrentPrice = u.CurrentPrice
		q.DailyChangePercent = u.DailyChangePercent
		c.quotes[u.Symbol] = q
	}
}

// SetQuotes replaces the cached quote for each fetched symbol.
func (c *Cache) SetQuotes(quotes []models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range quotes {
		c.quotes[q.Symbol] = q
	}
}

// Quote returns the cached quote for a symbol, if any.
func (c *Cache) Quote(symbol string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

// Quotes returns a snapshot of all cached quotes keyed by symbol.
func (c *Cache) Quotes() map[string]models.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.Quote, len(c.quotes))
	for sym, q := range c.quotes {
		out[sym] = q
	}
	return out
}

// Invalidate marks both position lists stale. Structural events carry too
// little to patch membership locally (an edit can move a position between
// tabs), so staleness plus refetch is the only safe reaction.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale[models.StatusOpen] = true
	c.stale[models.StatusClosed] = true
}

// SetPositions stores a freshly fetched list and clears its staleness.
func (c *Cache) SetPositions(status models.PositionStatus, positions []*models.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[status] = positions
	c.stale[status] = false
}

// Positions returns the cached list for a status.
func (c *Cache) Positions(status models.PositionStatus) []*models.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[status]
}

// Stale reports whether any position list is awaiting a refetch. UIs can
// surface this as a "data may be stale" indicator.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale[models.StatusOpen] || c.stale[models.StatusClosed]
}

// Summary recomputes the holder's valuation from the current positions and
// quotes. The computation is pure, so calling it repeatedly with unchanged
// cache state returns identical results.
func (c *Cache) Summary() valuation.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	positions := make([]*models.Position, 0, len(c.lists[models.StatusOpen])+len(c.lists[models.StatusClosed]))
	positions = append(positions, c.lists[models.StatusOpen]...)
	positions = append(positions, c.lists[models.StatusClosed]...)

	return valuation.Summarize(positions, c.quotes)
}

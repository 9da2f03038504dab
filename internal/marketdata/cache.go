package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

const quoteKeyPrefix = "quote:"

// Cache stores the latest quote snapshot per symbol in Redis. Entries expire
// so a delisted or no-longer-held symbol does not serve stale prices forever.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a quote snapshot cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Set stores quotes, one key per symbol.
func (c *Cache) Set(ctx context.Context, quotes []models.Quote) error {
	pipe := c.client.Pipeline()
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to marshal quote for %s: %w", q.Symbol, err)
		}
		pipe.Set(ctx, quoteKeyPrefix+q.Symbol, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache quotes: %w", err)
	}
	return nil
}

// Get returns the cached quotes for the requested symbols plus the symbols
// that had no cache entry.
func (c *Cache) Get(ctx context.Context, symbols []string) ([]models.Quote, []string, error) {
	if len(symbols) == 0 {
		return nil, nil, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = quoteKeyPrefix + strings.ToUpper(s)
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read quote cache: %w", err)
	}

	var quotes []models.Quote
	var missing []string
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			missing = append(missing, strings.ToUpper(symbols[i]))
			continue
		}
		var q models.Quote
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			missing = append(missing, strings.ToUpper(symbols[i]))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, missing, nil
}

package marketdata

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Service serves quote reads cache-first, falling back to the provider for
// symbols the cache cannot answer.
type Service struct {
	client *Client
	cache  *Cache
	logger *zap.Logger
}

// NewService creates a cache-first quote reader. The cache may be nil, in
// which case every read goes to the provider.
func NewService(client *Client, cache *Cache, logger *zap.Logger) *Service {
	return &Service{client: client, cache: cache, logger: logger}
}

// GetQuotes returns the latest known quote per symbol. Cached snapshots are
// preferred; cache misses are fetched from the provider and written back.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			normalized = append(normalized, sym)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	if s.cache == nil {
		return s.client.GetQuotes(ctx, normalized)
	}

	cached, missing, err := s.cache.Get(ctx, normalized)
	if err != nil {
		s.logger.Warn("quote cache read failed, falling back to provider", zap.Error(err))
		return s.client.GetQuotes(ctx, normalized)
	}
	if len(missing) == 0 {
		return cached, nil
	}

	fetched, err := s.client.GetQuotes(ctx, missing)
	if err != nil {
		if len(cached) > 0 {
			// Partial data beats none; the poller will fill the gaps.
			s.logger.Warn("provider fetch for cache misses failed",
				zap.Strings("symbols", missing), zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, fetched); err != nil {
		s.logger.Warn("failed to backfill quote cache", zap.Error(err))
	}
	return append(cached, fetched...), nil
}

// Package marketdata wraps the external market data provider and the Redis
// snapshot cache in front of it.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// Client is a stateless HTTP adapter for the market data provider. Auth and
// rate limiting are the provider deployment's concern; callers only see
// GetQuotes with a bounded request.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client. timeout bounds each request on top of
// any caller-supplied context deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetQuotes fetches current price and daily change for each symbol. Symbols
// are normalized to upper case. A symbol the provider cannot price is simply
// absent from the result; an empty result for a non-empty request is an error.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}

	u := fmt.Sprintf("%s/quotes?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(normalized, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quotes request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quotes request returned status %d", resp.StatusCode)
	}

	var quotes []models.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("failed to decode quotes response: %w", err)
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("provider returned no quotes for %v", normalized)
	}

	now := time.Now()
	for i := range quotes {
		quotes[i].Symbol = strings.ToUpper(quotes[i].Symbol)
		quotes[i].FetchedAt = now
	}
	return quotes, nil
}

package client

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

// API is the HTTP read client used to load and refetch position lists and
// quote snapshots from the portfolio service.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI creates a read client for the given server base URL, authenticating
// every request with the holder's bearer token.
func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetPositions fetches the holder's positions filtered by status.
func (a *API) GetPositions(ctx context.Context, status models.PositionStatus) ([]*models.Position, error) {
	var positions []*models.Position
	path := fmt.Sprintf("/api/positions?status=%s", url.QueryEscape(string(status)))
	if err := a.getJSON(ctx, path, &positions); err != nil {
		return nil, fmt.Errorf("failed to fetch %s positions: %w", status, err)
	}
	return positions, nil
}

// GetQuotes fetches current quotes for the given symbols.
func (a *API) GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var quotes []models.Quote
	path := fmt.Sprintf("/api/quotes?symbols=%s", url.QueryEscape(strings.Join(symbols, ",")))
	if err := a.getJSON(ctx, path, &quotes); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	return quotes, nil
}

func (a *API) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

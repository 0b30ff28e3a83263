package pendle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api-v2.pendle.finance/core/v1"

// Market represents a single active market from the Pendle market-listing
// endpoint. Only the fields the monitor needs are decoded.
type Market struct {
	Address string    `json:"address"`
	Name    string    `json:"name"`
	Expiry  time.Time `json:"expiry"`
	Details struct {
		Liquidity  float64 `json:"liquidity"`
		ImpliedAPY float64 `json:"impliedApy"` // fraction, e.g. 0.21 = 21%
	} `json:"details"`
}

// ImpliedAPYPct returns the implied APY as a percentage.
func (m *Market) ImpliedAPYPct() float64 {
	return m.Details.ImpliedAPY * 100
}

// Key returns the canonical "{chainID}-{address}" identifier for a market.
func (m *Market) Key(chainID int64) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(m.Address))
}

// ExpiresWithin reports whether the market expires within d from now.
// Already-expired markets return false.
func (m *Market) ExpiresWithin(d time.Duration) bool {
	if m.Expiry.IsZero() {
		return false
	}
	until := time.Until(m.Expiry)
	return until > 0 && until <= d
}

// Client fetches market data from the Pendle API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchActiveMarkets fetches all active markets for one chain.
func (c *Client) FetchActiveMarkets(ctx context.Context, chainID int64) ([]Market, error) {
	url := fmt.Sprintf("%s/%d/markets/active", c.baseURL, chainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pendle request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pendle API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pendle API status: %d", resp.StatusCode)
	}

	var body struct {
		Markets []Market `json:"markets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode pendle markets: %w", err)
	}
	return body.Markets, nil
}

// Package scorer queries the external contract risk-scoring service.
package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-sniper/internal/domain"
)

// DefaultTimeout bounds one score lookup.
const DefaultTimeout = 5 * time.Second

// Client fetches risk scores over HTTP: GET {base}/api/score/{mint}.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates a score client for the given service base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scoreResponse is the service's response body.
type scoreResponse struct {
	Score *int `json:"score"`
}

// Score retrieves the risk score for a mint in [0,100]. The second
// return value reports whether a score was present. Network failures
// are classified ErrUnavailable; the caller fails closed on them.
func (c *Client) Score(ctx context.Context, mint string) (int, bool, error) {
	url := fmt.Sprintf("%s/api/score/%s", c.baseURL, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("%w: score request: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("%w: score status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, false, fmt.Errorf("%w: read score response: %v", domain.ErrUnavailable, err)
	}

	var sr scoreResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return 0, false, fmt.Errorf("%w: unmarshal score response: %v", domain.ErrUnavailable, err)
	}

	if sr.Score == nil {
		return 0, false, nil
	}
	if *sr.Score < 0 || *sr.Score > 100 {
		return 0, false, fmt.Errorf("%w: score %d out of range", domain.ErrUnavailable, *sr.Score)
	}

	return *sr.Score, true, nil
}

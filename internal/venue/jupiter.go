// Package venue talks to the swap aggregator that quotes and builds
// signable swap transactions.
package venue

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-sniper/internal/domain"
)

// DefaultTimeout bounds one quote request.
const DefaultTimeout = 15 * time.Second

// Quote is a priced, signable swap returned by the venue.
type Quote struct {
	// Transaction is the serialized transaction to sign and broadcast.
	Transaction []byte
	// Price is the quoted output-per-input price.
	Price float64
	// PriceImpactBps is the quoted deviation from the pool mid price.
	PriceImpactBps int
}

// Client requests swap quotes from a Jupiter-style aggregator API.
type Client struct {
	endpoint string
	client   *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a venue client for the given swap API endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// swapRequest is the venue's quote+swap request body.
type swapRequest struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      int64  `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
}

// swapResponse is the venue's quote+swap response body.
type swapResponse struct {
	SwapTransaction string  `json:"swapTransaction"` // hex-encoded
	Price           float64 `json:"price"`
	PriceImpactBps  int     `json:"priceImpactBps"`
	Error           string  `json:"error,omitempty"`
}

// RequestQuote builds a quote+swap request from the order and submits it.
// Network failures and server-side errors are classified ErrTransient;
// venue refusals are classified ErrVenueRejected and must not be retried.
func (c *Client) RequestQuote(ctx context.Context, order *domain.SwapOrder) (*Quote, error) {
	body, err := json.Marshal(swapRequest{
		InputMint:   order.InputMint,
		OutputMint:  order.OutputMint,
		Amount:      order.AmountIn,
		SlippageBps: order.MaxSlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: swap request: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: venue status %d", domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrVenueRejected, resp.StatusCode, truncate(respBody, 256))
	}

	var sr swapResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrTransient, err)
	}

	if sr.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrVenueRejected, sr.Error)
	}
	if sr.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: no transaction data", domain.ErrVenueRejected)
	}

	tx, err := hex.DecodeString(sr.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: decode swap transaction: %v", domain.ErrVenueRejected, err)
	}

	return &Quote{
		Transaction:    tx,
		Price:          sr.Price,
		PriceImpactBps: sr.PriceImpactBps,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// Package metadata enriches discovered tokens with market data from
// the DexScreener search API.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-sniper/internal/domain"
)

// DefaultBaseURL is the public DexScreener API endpoint.
const DefaultBaseURL = "https://api.dexscreener.com"

// DefaultTimeout bounds one metadata lookup.
const DefaultTimeout = 10 * time.Second

// Client queries DexScreener: GET {base}/latest/dex/search?q={mint}.
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

// NewClient creates a metadata client. An empty baseURL selects the
// public API.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	URL       string      `json:"url"`
	PriceUSD  string      `json:"priceUsd"` // decimal string
	FDV       *float64    `json:"fdv"`
	BaseToken baseToken   `json:"baseToken"`
	Volume    *pairVolume `json:"volume"`
	Liquidity *pairLiq    `json:"liquidity"`
}

type baseToken struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type pairVolume struct {
	H24 *float64 `json:"h24"`
}

type pairLiq struct {
	USD *float64 `json:"usd"`
}

// Lookup fetches market metadata for a mint. The returned record has
// only Mint and DiscoveredAt set when no pair is listed yet; that is
// not an error, fresh tokens routinely have no pair. Network failures
// are classified ErrUnavailable.
func (c *Client) Lookup(ctx context.Context, mint string, discoveredAt int64) (*domain.TokenRecord, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, url.QueryEscape(mint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata request: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: metadata status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata response: %v", domain.ErrUnavailable, err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: unmarshal metadata response: %v", domain.ErrUnavailable, err)
	}

	record := &domain.TokenRecord{
		Mint:         mint,
		DiscoveredAt: discoveredAt,
	}
	if len(sr.Pairs) == 0 {
		return record, nil
	}

	// The first pair is the most liquid listing for the query.
	p := sr.Pairs[0]
	if p.BaseToken.Name != "" {
		record.Name = &p.BaseToken.Name
	}
	if p.BaseToken.Symbol != "" {
		record.Symbol = &p.BaseToken.Symbol
	}
	if p.URL != "" {
		record.PairURL = &p.URL
	}
	if p.PriceUSD != "" {
		if price, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil {
			record.PriceUSD = &price
		}
	}
	if p.Volume != nil {
		record.Volume24hUSD = p.Volume.H24
	}
	if p.Liquidity != nil {
		record.LiquidityUSD = p.Liquidity.USD
	}
	record.MarketCapUSD = p.FDV

	return record, nil
}

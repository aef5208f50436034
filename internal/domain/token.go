package domain

// TokenRecord represents enriched metadata for a discovered token.
// Corresponds to token_records table in PostgreSQL; written append-only
// by the pipeline, never read back by it.
type TokenRecord struct {
	ID           int64    // BIGSERIAL primary key
	Mint         string   // token mint address
	Name         *string  // token name (nullable)
	Symbol       *string  // token symbol (nullable)
	PairURL      *string  // DEX pair page URL (nullable)
	PriceUSD     *float64 // last known price (nullable)
	Volume24hUSD *float64 // 24h volume (nullable)
	LiquidityUSD *float64 // pool liquidity (nullable)
	MarketCapUSD *float64 // fully diluted valuation (nullable)
	DiscoveredAt int64    // Unix timestamp in milliseconds
	CreatedAt    int64    // record creation timestamp (ms)
}

// PriceTick is one archived price stream event.
// Corresponds to price_ticks table in ClickHouse.
type PriceTick struct {
	Mint        string
	Price       float64
	TimestampMs int64
}

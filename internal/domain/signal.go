package domain

// Signal is one record produced by a signal source: either raw social
// text to be parsed for asset references, or pre-resolved mints.
type Signal struct {
	Source      string   // producing account/feed identifier
	Text        string   // raw text, empty when mints are pre-resolved
	Mints       []string // resolved contract identifiers
	Tickers     []string // cashtag symbols mentioned alongside
	MentionedAt int64    // Unix timestamp in milliseconds
}

// PriceUpdate is one event on an asset's price subscription. Updates are
// ordered within a single mint's subscription but not across mints.
type PriceUpdate struct {
	Mint      string
	Price     float64
	Timestamp int64 // Unix timestamp in milliseconds
}

package storage

import (
	"context"

	"solana-sniper/internal/domain"
)

// TokenRecordStore provides access to token_records storage. The
// pipeline only appends; read methods exist for tooling and tests.
type TokenRecordStore interface {
	// Insert appends a new token record.
	Insert(ctx context.Context, r *domain.TokenRecord) error

	// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TokenRecord, error)
}

// PriceTickStore provides access to the price_ticks archive.
type PriceTickStore interface {
	// InsertBulk appends a batch of ticks.
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByMint retrieves all ticks for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.PriceTick, error)
}

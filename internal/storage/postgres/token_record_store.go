package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenRecordStore implements storage.TokenRecordStore using PostgreSQL.
type TokenRecordStore struct {
	pool *Pool
}

// NewTokenRecordStore creates a new TokenRecordStore.
func NewTokenRecordStore(pool *Pool) *TokenRecordStore {
	return &TokenRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)

// Insert appends a new token record.
func (s *TokenRecordStore) Insert(ctx context.Context, r *domain.TokenRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_records (
			mint, name, symbol, pair_url, price_usd, volume_24h_usd,
			liquidity_usd, market_cap_usd, discovered_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		r.Mint,
		r.Name,
		r.Symbol,
		r.PairURL,
		r.PriceUSD,
		r.Volume24hUSD,
		r.LiquidityUSD,
		r.MarketCapUSD,
		r.DiscoveredAt,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token record: %w", err)
	}
	return nil
}

// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
func (s *TokenRecordStore) GetByMint(ctx context.Context, mint string) ([]*domain.TokenRecord, error) {
	query := `
		SELECT id, mint, name, symbol, pair_url, price_usd, volume_24h_usd,
		       liquidity_usd, market_cap_usd, discovered_at, created_at
		FROM token_records
		WHERE mint = $1
		ORDER BY discovered_at ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query token records: %w", err)
	}
	defer rows.Close()

	var records []*domain.TokenRecord
	for rows.Next() {
		var r domain.TokenRecord
		if err := rows.Scan(
			&r.ID,
			&r.Mint,
			&r.Name,
			&r.Symbol,
			&r.PairURL,
			&r.PriceUSD,
			&r.Volume24hUSD,
			&r.LiquidityUSD,
			&r.MarketCapUSD,
			&r.DiscoveredAt,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token records: %w", err)
	}
	return records, nil
}

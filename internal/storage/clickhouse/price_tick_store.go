package clickhouse

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
// Ticks are an append-only archive; duplicates are tolerated and left
// to the table engine to collapse.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk appends a batch of ticks.
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (mint, timestamp_ms, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if err := batch.Append(t.Mint, uint64(t.TimestampMs), t.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all ticks for a mint, ordered by timestamp ASC.
func (s *PriceTickStore) GetByMint(ctx context.Context, mint string) ([]*domain.PriceTick, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, timestamp_ms, price
		FROM price_ticks
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query price ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*domain.PriceTick
	for rows.Next() {
		var (
			t  domain.PriceTick
			ts uint64
		)
		if err := rows.Scan(&t.Mint, &ts, &t.Price); err != nil {
			return nil, fmt.Errorf("scan price tick: %w", err)
		}
		t.TimestampMs = int64(ts)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price ticks: %w", err)
	}
	return ticks, nil
}

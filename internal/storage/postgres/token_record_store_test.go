package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func TestTokenRecordStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	record := &domain.TokenRecord{
		Mint:         "TokenMint1",
		Name:         ptr("Test Token"),
		Symbol:       ptr("TST"),
		PairURL:      ptr("https://dexscreener.com/solana/pair1"),
		PriceUSD:     ptr(0.0042),
		Volume24hUSD: ptr(150000.0),
		LiquidityUSD: ptr(42000.0),
		MarketCapUSD: ptr(4200000.0),
		DiscoveredAt: 1700000000000,
		CreatedAt:    1700000001000,
	}

	err := store.Insert(ctx, record)
	require.NoError(t, err)

	records, err := store.GetByMint(ctx, "TokenMint1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.NotZero(t, got.ID)
	assert.Equal(t, record.Mint, got.Mint)
	require.NotNil(t, got.Name)
	assert.Equal(t, *record.Name, *got.Name)
	require.NotNil(t, got.Symbol)
	assert.Equal(t, *record.Symbol, *got.Symbol)
	require.NotNil(t, got.PriceUSD)
	assert.InDelta(t, *record.PriceUSD, *got.PriceUSD, 0.000001)
	require.NotNil(t, got.LiquidityUSD)
	assert.InDelta(t, *record.LiquidityUSD, *got.LiquidityUSD, 0.0001)
	assert.Equal(t, record.DiscoveredAt, got.DiscoveredAt)
	assert.Equal(t, record.CreatedAt, got.CreatedAt)
}

func TestTokenRecordStore_InsertNullableFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	// Metadata lookup can come back empty; only the mint and times are
	// guaranteed.
	record := &domain.TokenRecord{
		Mint:         "SparseMint",
		DiscoveredAt: 1700000000000,
	}

	err := store.Insert(ctx, record)
	require.NoError(t, err)

	records, err := store.GetByMint(ctx, "SparseMint")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Nil(t, got.Name)
	assert.Nil(t, got.Symbol)
	assert.Nil(t, got.PriceUSD)
	assert.Nil(t, got.MarketCapUSD)
	assert.NotZero(t, got.CreatedAt, "created_at defaults to now when unset")
}

func TestTokenRecordStore_GetByMintOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	for _, ts := range []int64{3000, 1000, 2000} {
		err := store.Insert(ctx, &domain.TokenRecord{Mint: "OrderedMint", DiscoveredAt: ts, CreatedAt: ts})
		require.NoError(t, err)
	}

	records, err := store.GetByMint(ctx, "OrderedMint")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1000), records[0].DiscoveredAt)
	assert.Equal(t, int64(2000), records[1].DiscoveredAt)
	assert.Equal(t, int64(3000), records[2].DiscoveredAt)
}

func TestTokenRecordStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenRecordStore(pool)

	err := store.Insert(context.Background(), &domain.TokenRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTokenRecordStore_GetByMintEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenRecordStore(pool)

	records, err := store.GetByMint(context.Background(), "NoSuchMint")
	require.NoError(t, err)
	assert.Empty(t, records)
}

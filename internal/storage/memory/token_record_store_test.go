package memory

import (
	"context"
	"errors"
	"testing"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func TestTokenRecordStore_InsertAndGetByMint(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	name := "Test Token"
	symbol := "TST"
	price := 0.0042

	record := &domain.TokenRecord{
		Mint:         "mint1",
		Name:         &name,
		Symbol:       &symbol,
		PriceUSD:     &price,
		DiscoveredAt: 1704067200000,
		CreatedAt:    1704067200000,
	}

	if err := store.Insert(ctx, record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	records, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID == 0 {
		t.Error("expected assigned ID")
	}
	if *records[0].Name != "Test Token" {
		t.Errorf("Name mismatch: got %s, want Test Token", *records[0].Name)
	}
	if *records[0].PriceUSD != 0.0042 {
		t.Errorf("PriceUSD mismatch: got %v", *records[0].PriceUSD)
	}
}

func TestTokenRecordStore_GetByMintOrdering(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	// Insert out of order; reads come back by discovered_at ASC.
	for _, ts := range []int64{3000, 1000, 2000} {
		if err := store.Insert(ctx, &domain.TokenRecord{Mint: "mint1", DiscoveredAt: ts}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	records, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if records[i].DiscoveredAt != want {
			t.Errorf("record %d: got discovered_at %d, want %d", i, records[i].DiscoveredAt, want)
		}
	}
}

func TestTokenRecordStore_InsertInvalid(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil record: got %v, want ErrInvalidInput", err)
	}
	if err := store.Insert(ctx, &domain.TokenRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty mint: got %v, want ErrInvalidInput", err)
	}
}

func TestTokenRecordStore_InsertCopies(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	record := &domain.TokenRecord{Mint: "mint1", DiscoveredAt: 1000}
	if err := store.Insert(ctx, record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the original must not affect the stored copy.
	record.DiscoveredAt = 9999

	records, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if records[0].DiscoveredAt != 1000 {
		t.Errorf("stored record mutated: got %d", records[0].DiscoveredAt)
	}
}

func TestTokenRecordStore_GetByMintEmpty(t *testing.T) {
	store := NewTokenRecordStore()

	records, err := store.GetByMint(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
